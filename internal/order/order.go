package order

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/auction-api/internal/auction"
	"github.com/ksred/auction-api/internal/auth"
	"github.com/ksred/auction-api/internal/broadcast"
	"github.com/ksred/auction-api/internal/notification"
	"github.com/ksred/auction-api/internal/types"
	"github.com/ksred/auction-api/pkg/response"
)

const deliveryLeadDays = 7

var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrAuctionOpen     = errors.New("auction has not ended yet")
	ErrNotWinner       = errors.New("only the winning bidder can place this order")
	ErrAlreadyOrdered  = errors.New("order already placed for this auction")
	ErrOrderNotFound   = errors.New("order not found")
	ErrInvalidStatus   = errors.New("invalid order status")
	ErrMissingFields   = errors.New("address and payment details are required")
)

// Service handles post-auction checkout and fulfillment-status tracking.
// Payment is a demo stub: every checkout is recorded as paid.
type Service struct {
	db       *Database
	auctions *auction.Database
	registry *broadcast.Registry
	now      func() time.Time
}

// NewService creates a new order service with the given database
// connection and broadcast registry.
func NewService(gormDB *gorm.DB, registry *broadcast.Registry) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		auctions: auction.NewDatabase(gormDB),
		registry: registry,
		now:      time.Now,
	}
}

// CheckoutInput is the winner's order submission
type CheckoutInput struct {
	AuctionID string `json:"auction_id"`
	Address   string `json:"address"`
	Payment   string `json:"payment"`
}

// Checkout places the order for an ended auction. Only the winning
// bidder (amount DESC, bid_time ASC) may order, exactly once.
func (s *Service) Checkout(identity auth.Identity, input CheckoutInput) (*types.OrderConfirmation, error) {
	if input.Address == "" || input.Payment == "" {
		return nil, ErrMissingFields
	}

	a, err := s.auctions.GetAuction(input.AuctionID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAuctionNotFound
	}
	if a.EndTime.After(s.now()) {
		return nil, ErrAuctionOpen
	}

	winner, err := s.auctions.WinningBid(input.AuctionID)
	if err != nil {
		return nil, err
	}
	if winner == nil || winner.UserID != identity.UserID {
		return nil, ErrNotWinner
	}

	existing, err := s.db.GetOrderForAuction(input.AuctionID, identity.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyOrdered
	}

	order := &types.Order{
		OrderID:       "ORD_" + uuid.New().String(),
		AuctionID:     input.AuctionID,
		UserID:        identity.UserID,
		Address:       input.Address,
		PaymentStatus: "paid", // demo: payment always succeeds
		OrderStatus:   types.OrderStatuses[0],
		CreatedAt:     s.now(),
	}
	if err := s.db.CreateOrder(order); err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", order.OrderID).
		Str("auction_id", input.AuctionID).
		Str("user_id", identity.UserID).
		Msg("order placed")

	return &types.OrderConfirmation{
		Order:        *order,
		DeliveryDate: order.CreatedAt.AddDate(0, 0, deliveryLeadDays).Format("Monday, Jan 02"),
	}, nil
}

// Get returns an order visible to its owner or an admin
func (s *Service) Get(identity auth.Identity, orderID string) (*types.Order, error) {
	order, err := s.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || (order.UserID != identity.UserID && !identity.Admin) {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// List returns all orders (admin)
func (s *Service) List() ([]types.Order, error) {
	return s.db.ListOrders()
}

// UpdateStatus moves an order to a new fulfillment status, writes the
// buyer's notification in the same transaction, then pushes the private
// notification and the public status event after commit.
func (s *Service) UpdateStatus(orderID, status string) (*types.Order, error) {
	if !validStatus(status) {
		return nil, ErrInvalidStatus
	}

	order, err := s.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	order.OrderStatus = status
	order.UpdatedAt = s.now()
	n := notification.NewOrderStatus(order.UserID, order.OrderID, status, s.now())

	if err := s.db.UpdateStatusWithNotification(order, &n); err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", orderID).
		Str("status", status).
		Msg("order status updated")

	s.registry.Publish(broadcast.UserTopic(order.UserID), types.EventNewNotification, types.NotificationEventFrom(&n))
	s.registry.Publish(broadcast.TopicPublic, types.EventStatusUpdate, types.OrderStatusEvent{
		OrderID: orderID,
		Status:  status,
	})

	return order, nil
}

func validStatus(status string) bool {
	for _, s := range types.OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// GinHandlers contains HTTP handlers for order endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for order endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// CheckoutHandler handles POST requests placing the winner's order
func (h *GinHandlers) CheckoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.IdentityFromContext(c)
		if !ok {
			response.Unauthorized(c, "Authentication required")
			return
		}

		var input CheckoutInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		confirmation, err := h.service.Checkout(identity, input)
		if err != nil {
			handleOrderError(c, err)
			return
		}
		response.Success(c, confirmation)
	}
}

// GetOrderHandler handles GET requests for one order
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.IdentityFromContext(c)
		if !ok {
			response.Unauthorized(c, "Authentication required")
			return
		}

		order, err := h.service.Get(identity, c.Param("order_id"))
		if err != nil {
			handleOrderError(c, err)
			return
		}
		response.Success(c, order)
	}
}

// ListOrdersHandler handles GET requests for all orders (admin)
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.service.List()
		response.Handle(c, orders, err)
	}
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatusHandler handles PUT requests moving an order through
// fulfillment (admin)
func (h *GinHandlers) UpdateStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		order, err := h.service.UpdateStatus(c.Param("order_id"), req.Status)
		if err != nil {
			handleOrderError(c, err)
			return
		}
		response.Success(c, order)
	}
}

func handleOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrAuctionNotFound), errors.Is(err, ErrOrderNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrNotWinner):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrAuctionOpen), errors.Is(err, ErrAlreadyOrdered):
		response.Fail(c, http.StatusConflict, "ORDER_REJECTED", err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrMissingFields):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, "An unexpected error occurred")
	}
}
