package bidding

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ksred/auction-api/internal/auth"
	"github.com/ksred/auction-api/internal/broadcast"
	"github.com/ksred/auction-api/internal/types"
	"github.com/ksred/auction-api/pkg/response"
)

// Service is the bid arbiter: it decides every bid attempt under a
// per-auction critical section so concurrent attempts on one auction
// behave as if fully serialized, while different auctions never block
// each other.
type Service struct {
	db       *Database
	locks    *lockTable
	registry *broadcast.Registry
	lockWait time.Duration
	now      func() time.Time
}

// NewService creates a new bidding service with the given database
// connection and broadcast registry.
func NewService(gormDB *gorm.DB, registry *broadcast.Registry, lockWait time.Duration) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		locks:    newLockTable(),
		registry: registry,
		lockWait: lockWait,
		now:      time.Now,
	}
}

// PlaceBid validates and commits a single bid attempt. Preconditions are
// checked in order, each with its own rejection: verified identity,
// auction exists, bidder is not the seller, auction still open, amount
// strictly above the current price. The price check and all writes run
// inside the critical section; broadcasting happens strictly after the
// commit has durably succeeded.
func (s *Service) PlaceBid(ctx context.Context, identity auth.Identity, auctionID string, amount decimal.Decimal) (*types.BidReceipt, error) {
	logger := log.With().
		Str("auction_id", auctionID).
		Str("user_id", identity.UserID).
		Str("service", "bidding").
		Logger()

	if !identity.Verified {
		return nil, ErrNotVerified
	}

	release, err := s.locks.acquire(ctx, auctionID, s.lockWait)
	if err != nil {
		logger.Warn().Err(err).Msg("bid lock not granted within bound")
		return nil, err
	}
	defer release()

	now := s.now()
	result, err := s.db.CommitBid(identity, auctionID, amount, now)
	if err != nil {
		if IsRejection(err) {
			logger.Info().Err(err).Str("amount", amount.StringFixed(2)).Msg("bid rejected")
			return nil, err
		}
		logger.Error().Err(err).Msg("bid transaction failed, rolled back")
		return nil, errors.Join(ErrContention, err)
	}

	logger.Info().
		Str("bid_id", result.Bid.BidID).
		Str("amount", amount.StringFixed(2)).
		Msg("bid committed")

	// Post-commit side effects. A crash or push failure here is an
	// accepted best-effort gap: the rows are durable and clients
	// reconcile through the summary endpoint.
	s.registry.Publish(broadcast.TopicPublic, types.EventNewBid, types.BidEvent{
		AuctionID: auctionID,
		Amount:    amount.StringFixed(2),
		UserName:  identity.UserName,
		BidTime:   result.Bid.BidTime.Format(time.RFC3339),
	})

	if result.Outbid != nil {
		s.registry.Publish(
			broadcast.UserTopic(result.Outbid.UserID),
			types.EventNewNotification,
			types.NotificationEventFrom(result.Outbid),
		)
	}

	return &types.BidReceipt{
		BidID:        result.Bid.BidID,
		AuctionID:    auctionID,
		Amount:       amount.StringFixed(2),
		CurrentPrice: result.CurrentPrice.StringFixed(2),
		BidTime:      result.Bid.BidTime,
	}, nil
}

// GinHandlers contains HTTP handlers for bidding endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for bidding endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

type placeBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// PlaceBidHandler handles POST requests to submit a bid on an auction.
// Requires a valid JWT token. URL parameter: auction_id.
func (h *GinHandlers) PlaceBidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.IdentityFromContext(c)
		if !ok {
			response.Unauthorized(c, "Authentication required")
			return
		}

		auctionID := c.Param("auction_id")
		if auctionID == "" {
			response.BadRequest(c, "Auction ID is required")
			return
		}

		var req placeBidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		if req.Amount.Sign() <= 0 {
			response.BadRequest(c, "Bid amount must be positive")
			return
		}

		receipt, err := h.service.PlaceBid(c.Request.Context(), identity, auctionID, req.Amount)
		if err != nil {
			status, code := rejectionStatus(err)
			response.Fail(c, status, code, err.Error())
			return
		}

		response.Success(c, receipt)
	}
}

// rejectionStatus maps arbiter outcomes onto the HTTP surface. Validation
// rejections are terminal 4xx results; everything else is a retry-safe
// transient failure.
func rejectionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotVerified):
		return http.StatusForbidden, "UNVERIFIED"
	case errors.Is(err, ErrAuctionNotFound):
		return http.StatusNotFound, response.ErrCodeNotFound
	case errors.Is(err, ErrSelfBid):
		return http.StatusForbidden, "SELF_BID"
	case errors.Is(err, ErrAuctionEnded):
		return http.StatusConflict, "ENDED"
	case errors.Is(err, ErrBidTooLow):
		return http.StatusConflict, "TOO_LOW"
	default:
		return http.StatusServiceUnavailable, response.ErrCodeTransientFailure
	}
}
