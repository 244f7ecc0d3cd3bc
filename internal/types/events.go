package types

import "time"

// Broadcast event names, carried in the envelope so clients can dispatch
// without inspecting the payload shape.
const (
	EventNewBid          = "new_bid"
	EventNewNotification = "new_notification"
	EventStatusUpdate    = "status_update"
)

// Envelope wraps every broadcast payload with its event name.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// BidEvent is broadcast on the public topic after a bid commits.
// Amount is a 2-decimal fixed string.
type BidEvent struct {
	AuctionID string `json:"auction_id"`
	Amount    string `json:"amount"`
	UserName  string `json:"user_name"`
	BidTime   string `json:"bid_time"`
}

// NotificationEvent is pushed to the recipient's private topic only. It is
// built from fields already known at commit time so no extra read is needed.
type NotificationEvent struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
	Link      string `json:"link"`
}

// OrderStatusEvent is broadcast on the public topic when an order moves
// through fulfillment.
type OrderStatusEvent struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// NotificationEventFrom converts a persisted notification row into its
// push representation.
func NotificationEventFrom(n *Notification) NotificationEvent {
	return NotificationEvent{
		ID:        n.NotificationID,
		UserID:    n.UserID,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
		Link:      n.Link,
	}
}
