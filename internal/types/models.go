package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Auction statuses
const (
	AuctionStatusActive = "ACTIVE"
	AuctionStatusEnded  = "ENDED"
)

// Order statuses, in fulfillment sequence
var OrderStatuses = []string{"Ordered", "Picked", "Shipped", "Delivered", "Cancelled"}

// Auction is the ledger row for a single listing. CurrentPrice is mutated
// only by the bid arbiter inside its per-auction critical section and is
// monotonically non-decreasing: it equals the highest committed bid, or
// StartingPrice while no bids exist.
type Auction struct {
	gorm.Model    `json:"-"`
	AuctionID     string          `gorm:"uniqueIndex" json:"auction_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `gorm:"type:decimal(10,2)" json:"starting_price"`
	CurrentPrice  decimal.Decimal `gorm:"type:decimal(10,2)" json:"current_price"`
	EndTime       time.Time       `gorm:"index" json:"end_time"`
	SellerID      string          `gorm:"index" json:"seller_id"`
	SellerName    string          `json:"seller_name"`
	Category      string          `gorm:"index" json:"category"`
	ImageURL      string          `json:"image_url"`
	Status        string          `json:"status"` // ACTIVE, ENDED
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Bid is append-only: created exactly once at commit time, never mutated.
// Winner determination orders by (amount DESC, bid_time ASC).
type Bid struct {
	gorm.Model `json:"-"`
	BidID      string          `gorm:"uniqueIndex" json:"bid_id"`
	AuctionID  string          `gorm:"index" json:"auction_id"`
	UserID     string          `gorm:"index" json:"user_id"`
	UserName   string          `json:"user_name"`
	Amount     decimal.Decimal `gorm:"type:decimal(10,2)" json:"amount"`
	BidTime    time.Time       `json:"bid_time"`
}

// Notification is created only as a side effect of a state transition
// (outbid, auction won, order status change). The persisted row is
// authoritative; the websocket push is a best-effort hint to refresh.
type Notification struct {
	gorm.Model     `json:"-"`
	NotificationID string    `gorm:"uniqueIndex" json:"id"`
	UserID         string    `gorm:"index" json:"user_id"`
	Message        string    `json:"message"`
	Link           string    `json:"link"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// Order is the post-auction checkout record for the winning bidder.
// Payment is stubbed: PaymentStatus is always "paid" on creation.
type Order struct {
	gorm.Model    `json:"-"`
	OrderID       string    `gorm:"uniqueIndex" json:"order_id"`
	AuctionID     string    `gorm:"index" json:"auction_id"`
	UserID        string    `gorm:"index" json:"user_id"`
	Address       string    `json:"address"`
	PaymentStatus string    `json:"payment_status"`
	OrderStatus   string    `json:"order_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
