package notification

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ksred/auction-api/internal/auth"
	"github.com/ksred/auction-api/internal/types"
	"github.com/ksred/auction-api/pkg/response"
)

// NewOutbid builds the notification row for a displaced leader. Callers
// insert it inside the same transaction as the bid commit so the row and
// the price update persist or roll back together.
func NewOutbid(userID, auctionTitle, auctionID string, now time.Time) types.Notification {
	return types.Notification{
		NotificationID: "NTF_" + uuid.New().String(),
		UserID:         userID,
		Message:        fmt.Sprintf("You have been outbid on %s.", auctionTitle),
		Link:           "/auction/" + auctionID,
		CreatedAt:      now,
	}
}

// NewAuctionWon builds the notification row for an auction winner once
// the listing closes.
func NewAuctionWon(userID, auctionTitle, auctionID string, now time.Time) types.Notification {
	return types.Notification{
		NotificationID: "NTF_" + uuid.New().String(),
		UserID:         userID,
		Message:        fmt.Sprintf("Congratulations! You won %s. Complete your order now.", auctionTitle),
		Link:           "/order/" + auctionID,
		CreatedAt:      now,
	}
}

// NewOrderStatus builds the notification row for a buyer whose order
// moved to a new fulfillment status.
func NewOrderStatus(userID, orderID, status string, now time.Time) types.Notification {
	return types.Notification{
		NotificationID: "NTF_" + uuid.New().String(),
		UserID:         userID,
		Message:        fmt.Sprintf("Your order #%s has been updated to %s.", orderID, status),
		Link:           "/dashboard",
		CreatedAt:      now,
	}
}

// Service serves the pull-based notification surface. Pushes are a
// low-latency hint; this is the authoritative record clients reconcile
// against after any missed broadcast.
type Service struct {
	db *Database
}

// NewService creates a new notification service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: NewDatabase(gormDB)}
}

// Summary returns the unread count and most recent notifications for one recipient
func (s *Service) Summary(userID string) (*types.NotificationSummary, error) {
	return s.db.Summary(userID)
}

// MarkAllRead marks every notification for the recipient as read
func (s *Service) MarkAllRead(userID string) error {
	return s.db.MarkAllRead(userID)
}

// GinHandlers contains HTTP handlers for notification endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for notification endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// SummaryHandler handles GET requests for the caller's notification summary
func (h *GinHandlers) SummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.IdentityFromContext(c)
		if !ok {
			response.Unauthorized(c, "Authentication required")
			return
		}

		summary, err := h.service.Summary(identity.UserID)
		response.Handle(c, summary, err)
	}
}

// MarkReadHandler handles POST requests marking the caller's notifications read.
// Scoped to the authenticated recipient; one user can never clear another's.
func (h *GinHandlers) MarkReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.IdentityFromContext(c)
		if !ok {
			response.Unauthorized(c, "Authentication required")
			return
		}

		if err := h.service.MarkAllRead(identity.UserID); err != nil {
			response.InternalError(c, "Failed to mark notifications read")
			return
		}
		response.Success(c, gin.H{"marked_read": true})
	}
}
