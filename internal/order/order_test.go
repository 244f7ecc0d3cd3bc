package order

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ksred/auction-api/internal/auth"
	"github.com/ksred/auction-api/internal/broadcast"
	"github.com/ksred/auction-api/internal/types"
)

var (
	alice = auth.Identity{UserID: "alice", UserName: "Alice", Verified: true}
	bob   = auth.Identity{UserID: "bob", UserName: "Bob", Verified: true}
	admin = auth.Identity{UserID: "admin", UserName: "Admin", Verified: true, Admin: true}
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *broadcast.Registry) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&types.Auction{}, &types.Bid{}, &types.Notification{}, &types.Order{}))

	registry := broadcast.NewRegistry()
	t.Cleanup(registry.Close)
	return NewService(db, registry), db, registry
}

// seedEndedAuction creates an ended auction won by alice, with bob as
// the losing underbidder.
func seedEndedAuction(t *testing.T, db *gorm.DB, auctionID string) {
	t.Helper()
	require.NoError(t, db.Create(&types.Auction{
		AuctionID:     auctionID,
		Title:         "Designer Handbag",
		Description:   "limited edition",
		StartingPrice: decimal.NewFromInt(500),
		CurrentPrice:  decimal.NewFromInt(650),
		EndTime:       time.Now().Add(-time.Minute),
		SellerID:      "seller",
		Category:      "Fashion",
		Status:        types.AuctionStatusEnded,
	}).Error)

	bids := []types.Bid{
		{BidID: "BID_bob_" + auctionID, AuctionID: auctionID, UserID: bob.UserID, Amount: decimal.NewFromInt(600), BidTime: time.Now().Add(-time.Hour)},
		{BidID: "BID_alice_" + auctionID, AuctionID: auctionID, UserID: alice.UserID, Amount: decimal.NewFromInt(650), BidTime: time.Now().Add(-30 * time.Minute)},
	}
	for i := range bids {
		require.NoError(t, db.Create(&bids[i]).Error)
	}
}

func TestCheckout(t *testing.T) {
	service, db, _ := newTestService(t)
	seedEndedAuction(t, db, "AUC_1")

	input := CheckoutInput{AuctionID: "AUC_1", Address: "1 Main St", Payment: "demo-card"}

	t.Run("missing_fields", func(t *testing.T) {
		_, err := service.Checkout(alice, CheckoutInput{AuctionID: "AUC_1"})
		require.ErrorIs(t, err, ErrMissingFields)
	})

	t.Run("unknown_auction", func(t *testing.T) {
		bad := input
		bad.AuctionID = "AUC_missing"
		_, err := service.Checkout(alice, bad)
		require.ErrorIs(t, err, ErrAuctionNotFound)
	})

	t.Run("loser_cannot_order", func(t *testing.T) {
		_, err := service.Checkout(bob, input)
		require.ErrorIs(t, err, ErrNotWinner)
	})

	t.Run("winner_orders_once", func(t *testing.T) {
		confirmation, err := service.Checkout(alice, input)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(confirmation.Order.OrderID, "ORD_"))
		require.Equal(t, "paid", confirmation.Order.PaymentStatus)
		require.Equal(t, "Ordered", confirmation.Order.OrderStatus)
		require.NotEmpty(t, confirmation.DeliveryDate)

		_, err = service.Checkout(alice, input)
		require.ErrorIs(t, err, ErrAlreadyOrdered)
	})
}

func TestCheckout_OpenAuctionRejected(t *testing.T) {
	service, db, _ := newTestService(t)
	require.NoError(t, db.Create(&types.Auction{
		AuctionID:     "AUC_open",
		Title:         "Still Running",
		StartingPrice: decimal.NewFromInt(100),
		CurrentPrice:  decimal.NewFromInt(100),
		EndTime:       time.Now().Add(time.Hour),
		SellerID:      "seller",
		Status:        types.AuctionStatusActive,
	}).Error)

	_, err := service.Checkout(alice, CheckoutInput{AuctionID: "AUC_open", Address: "1 Main St", Payment: "demo-card"})
	require.ErrorIs(t, err, ErrAuctionOpen)
}

func TestUpdateStatus(t *testing.T) {
	service, db, registry := newTestService(t)
	seedEndedAuction(t, db, "AUC_1")

	confirmation, err := service.Checkout(alice, CheckoutInput{AuctionID: "AUC_1", Address: "1 Main St", Payment: "demo-card"})
	require.NoError(t, err)
	orderID := confirmation.Order.OrderID

	_, err = service.UpdateStatus(orderID, "Teleported")
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = service.UpdateStatus("ORD_missing", "Shipped")
	require.ErrorIs(t, err, ErrOrderNotFound)

	public, err := registry.Subscribe(broadcast.TopicPublic, bob)
	require.NoError(t, err)
	private, err := registry.Subscribe(broadcast.UserTopic(alice.UserID), alice)
	require.NoError(t, err)

	updated, err := service.UpdateStatus(orderID, "Shipped")
	require.NoError(t, err)
	require.Equal(t, "Shipped", updated.OrderStatus)

	// Buyer notification row persisted with the status change.
	var notifications []types.Notification
	require.NoError(t, db.Where("user_id = ?", alice.UserID).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	require.Contains(t, notifications[0].Message, "Shipped")

	frame := <-private.C
	require.Contains(t, string(frame), `"event":"new_notification"`)

	frame = <-public.C
	require.Contains(t, string(frame), `"event":"status_update"`)
	require.Contains(t, string(frame), `"status":"Shipped"`)
}

func TestGet_Visibility(t *testing.T) {
	service, db, _ := newTestService(t)
	seedEndedAuction(t, db, "AUC_1")

	confirmation, err := service.Checkout(alice, CheckoutInput{AuctionID: "AUC_1", Address: "1 Main St", Payment: "demo-card"})
	require.NoError(t, err)

	_, err = service.Get(bob, confirmation.Order.OrderID)
	require.ErrorIs(t, err, ErrOrderNotFound)

	owned, err := service.Get(alice, confirmation.Order.OrderID)
	require.NoError(t, err)
	require.Equal(t, alice.UserID, owned.UserID)

	viewed, err := service.Get(admin, confirmation.Order.OrderID)
	require.NoError(t, err)
	require.Equal(t, confirmation.Order.OrderID, viewed.OrderID)
}
