package auction

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ksred/auction-api/internal/auth"
	"github.com/ksred/auction-api/internal/types"
	"github.com/ksred/auction-api/pkg/response"
)

var (
	ErrNotFound     = errors.New("auction not found")
	ErrNotSeller    = errors.New("only the seller can edit this auction")
	ErrHasBids      = errors.New("cannot edit an auction that already has bids")
	ErrEnded        = errors.New("auction has ended")
	ErrInvalidInput = errors.New("invalid auction input")
	ErrPastEndTime  = errors.New("end time must be in the future")
	ErrInvalidPrice = errors.New("starting price must be positive")
)

// Service owns the auction ledger's listing lifecycle. The current price
// is never touched here; that column belongs to the bid arbiter.
type Service struct {
	db  *Database
	now func() time.Time
}

// NewService creates a new auction service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:  NewDatabase(gormDB),
		now: time.Now,
	}
}

// CreateInput is the listing submission payload
type CreateInput struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	EndTime       time.Time       `json:"end_time"`
	Category      string          `json:"category"`
	ImageURL      string          `json:"image_url"`
}

// UpdateInput is the listing edit payload. Price fields are absent on
// purpose: starting price is immutable and current price belongs to the
// arbiter.
type UpdateInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	EndTime     time.Time `json:"end_time"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url"`
}

// Create validates and persists a new listing with
// current_price = starting_price.
func (s *Service) Create(identity auth.Identity, input CreateInput) (*types.Auction, error) {
	if input.Title == "" || input.Description == "" || input.Category == "" {
		return nil, ErrInvalidInput
	}
	if input.StartingPrice.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if !input.EndTime.After(s.now()) {
		return nil, ErrPastEndTime
	}

	auction := &types.Auction{
		AuctionID:     "AUC_" + uuid.New().String(),
		Title:         input.Title,
		Description:   input.Description,
		StartingPrice: input.StartingPrice,
		CurrentPrice:  input.StartingPrice,
		EndTime:       input.EndTime,
		SellerID:      identity.UserID,
		SellerName:    identity.UserName,
		Category:      input.Category,
		ImageURL:      input.ImageURL,
		Status:        types.AuctionStatusActive,
	}

	if err := s.db.CreateAuction(auction); err != nil {
		return nil, err
	}

	log.Info().
		Str("auction_id", auction.AuctionID).
		Str("seller_id", identity.UserID).
		Str("starting_price", auction.StartingPrice.StringFixed(2)).
		Msg("auction created")

	return auction, nil
}

// List returns active auctions, optionally filtered by category
func (s *Service) List(category string) ([]types.Auction, error) {
	return s.db.ListActive(category, s.now())
}

// Get returns one auction together with its recent bid history
func (s *Service) Get(auctionID string) (*types.AuctionDetail, error) {
	auction, err := s.db.GetAuction(auctionID)
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, ErrNotFound
	}

	bids, err := s.db.RecentBids(auctionID)
	if err != nil {
		return nil, err
	}

	return &types.AuctionDetail{Auction: *auction, Bids: bids}, nil
}

// Bids returns the recent bid history for one auction
func (s *Service) Bids(auctionID string) ([]types.Bid, error) {
	auction, err := s.db.GetAuction(auctionID)
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, ErrNotFound
	}
	return s.db.RecentBids(auctionID)
}

// Update edits a listing. Only the seller may edit; once bids exist the
// listing is frozen for everyone except admins, and an ended listing is
// frozen outright. End-time edits with bids present are forbidden even
// for the seller, which keeps the timing invariant bids were placed under.
func (s *Service) Update(identity auth.Identity, auctionID string, input UpdateInput) (*types.Auction, error) {
	auction, err := s.db.GetAuction(auctionID)
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, ErrNotFound
	}

	if auction.SellerID != identity.UserID && !identity.Admin {
		return nil, ErrNotSeller
	}
	if !auction.EndTime.After(s.now()) {
		return nil, ErrEnded
	}

	count, err := s.db.CountBids(auctionID)
	if err != nil {
		return nil, err
	}
	if count > 0 && !identity.Admin {
		return nil, ErrHasBids
	}

	if input.Title == "" || input.Description == "" || input.Category == "" {
		return nil, ErrInvalidInput
	}
	if !input.EndTime.After(s.now()) {
		return nil, ErrPastEndTime
	}

	auction.Title = input.Title
	auction.Description = input.Description
	auction.EndTime = input.EndTime
	auction.Category = input.Category
	if input.ImageURL != "" {
		auction.ImageURL = input.ImageURL
	}

	if err := s.db.UpdateAuction(auction); err != nil {
		return nil, err
	}
	return auction, nil
}

// Delete removes an auction and its bids (admin moderation)
func (s *Service) Delete(auctionID string) error {
	auction, err := s.db.GetAuction(auctionID)
	if err != nil {
		return err
	}
	if auction == nil {
		return ErrNotFound
	}
	return s.db.DeleteAuction(auctionID)
}

// GinHandlers contains HTTP handlers for auction endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for auction endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// CreateAuctionHandler handles POST requests to create listings
func (h *GinHandlers) CreateAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.IdentityFromContext(c)
		if !ok {
			response.Unauthorized(c, "Authentication required")
			return
		}

		var input CreateInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		auction, err := h.service.Create(identity, input)
		if err != nil {
			handleAuctionError(c, err)
			return
		}
		response.Success(c, auction)
	}
}

// ListAuctionsHandler handles GET requests for active listings.
// Query parameter: category (optional).
func (h *GinHandlers) ListAuctionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctions, err := h.service.List(c.Query("category"))
		response.Handle(c, auctions, err)
	}
}

// GetAuctionHandler handles GET requests for one listing with bid history
func (h *GinHandlers) GetAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := h.service.Get(c.Param("auction_id"))
		if err != nil {
			handleAuctionError(c, err)
			return
		}
		response.Success(c, detail)
	}
}

// ListBidsHandler handles GET requests for an auction's recent bids
func (h *GinHandlers) ListBidsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bids, err := h.service.Bids(c.Param("auction_id"))
		if err != nil {
			handleAuctionError(c, err)
			return
		}
		response.Success(c, bids)
	}
}

// UpdateAuctionHandler handles PUT requests to edit a listing
func (h *GinHandlers) UpdateAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.IdentityFromContext(c)
		if !ok {
			response.Unauthorized(c, "Authentication required")
			return
		}

		var input UpdateInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		auction, err := h.service.Update(identity, c.Param("auction_id"), input)
		if err != nil {
			handleAuctionError(c, err)
			return
		}
		response.Success(c, auction)
	}
}

// DeleteAuctionHandler handles DELETE requests (admin moderation)
func (h *GinHandlers) DeleteAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.service.Delete(c.Param("auction_id")); err != nil {
			handleAuctionError(c, err)
			return
		}
		response.Success(c, gin.H{"deleted": true})
	}
}

func handleAuctionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrNotSeller):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrHasBids), errors.Is(err, ErrEnded):
		response.Fail(c, http.StatusConflict, "EDIT_FORBIDDEN", err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrPastEndTime), errors.Is(err, ErrInvalidPrice):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, "An unexpected error occurred")
	}
}
