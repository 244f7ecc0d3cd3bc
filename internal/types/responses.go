package types

import "time"

// BidReceipt represents the outcome of an accepted bid
type BidReceipt struct {
	BidID        string    `json:"bid_id"`
	AuctionID    string    `json:"auction_id"`
	Amount       string    `json:"amount"`
	CurrentPrice string    `json:"current_price"`
	BidTime      time.Time `json:"bid_time"`
}

// AuctionDetail represents an auction together with its recent bid history
type AuctionDetail struct {
	Auction Auction `json:"auction"`
	Bids    []Bid   `json:"bids"`
}

// NotificationSummary represents the pull-based notification fallback:
// the unread count plus the most recent notifications for one recipient
type NotificationSummary struct {
	UnreadCount int64          `json:"unread_count"`
	Recent      []Notification `json:"notifications"`
}

// OrderConfirmation represents a placed order and its delivery estimate
type OrderConfirmation struct {
	Order        Order  `json:"order"`
	DeliveryDate string `json:"delivery_date"`
}
