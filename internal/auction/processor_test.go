package auction

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ksred/auction-api/internal/broadcast"
	"github.com/ksred/auction-api/internal/types"
)

func seedEndedAuction(t *testing.T, db *gorm.DB, auctionID string, withBid bool) {
	t.Helper()
	require.NoError(t, db.Create(&types.Auction{
		AuctionID:     auctionID,
		Title:         "Signed Baseball",
		Description:   "memorabilia",
		StartingPrice: decimal.NewFromInt(200),
		CurrentPrice:  decimal.NewFromInt(200),
		EndTime:       time.Now().Add(-time.Minute),
		SellerID:      seller.UserID,
		Category:      "Sports",
		Status:        types.AuctionStatusActive,
	}).Error)

	if withBid {
		require.NoError(t, db.Create(&types.Bid{
			BidID:     "BID_" + auctionID,
			AuctionID: auctionID,
			UserID:    alice.UserID,
			UserName:  alice.UserName,
			Amount:    decimal.NewFromInt(300),
			BidTime:   time.Now().Add(-2 * time.Minute),
		}).Error)
	}
}

func TestCloseExpired_NotifiesWinnerOnce(t *testing.T) {
	db := newTestDB(t)
	registry := broadcast.NewRegistry()
	defer registry.Close()
	processor := NewProcessor(db, registry, time.Minute)

	seedEndedAuction(t, db, "AUC_won", true)

	private, err := registry.Subscribe(broadcast.UserTopic(alice.UserID), alice)
	require.NoError(t, err)

	require.NoError(t, processor.CloseExpired())

	var auction types.Auction
	require.NoError(t, db.Where("auction_id = ?", "AUC_won").First(&auction).Error)
	require.Equal(t, types.AuctionStatusEnded, auction.Status)

	var notifications []types.Notification
	require.NoError(t, db.Where("user_id = ?", alice.UserID).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	require.Contains(t, notifications[0].Message, "Signed Baseball")
	require.Equal(t, "/order/AUC_won", notifications[0].Link)

	frame := <-private.C
	require.Contains(t, string(frame), `"event":"new_notification"`)

	// A second sweep must not close or notify again.
	require.NoError(t, processor.CloseExpired())
	require.NoError(t, db.Where("user_id = ?", alice.UserID).Find(&notifications).Error)
	require.Len(t, notifications, 1)
}

func TestCloseExpired_NoBidsNoNotification(t *testing.T) {
	db := newTestDB(t)
	registry := broadcast.NewRegistry()
	defer registry.Close()
	processor := NewProcessor(db, registry, time.Minute)

	seedEndedAuction(t, db, "AUC_quiet", false)

	require.NoError(t, processor.CloseExpired())

	var auction types.Auction
	require.NoError(t, db.Where("auction_id = ?", "AUC_quiet").First(&auction).Error)
	require.Equal(t, types.AuctionStatusEnded, auction.Status)

	var count int64
	require.NoError(t, db.Model(&types.Notification{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCloseExpired_LeavesOpenAuctionsAlone(t *testing.T) {
	db := newTestDB(t)
	registry := broadcast.NewRegistry()
	defer registry.Close()
	processor := NewProcessor(db, registry, time.Minute)

	service := NewService(db)
	created, err := service.Create(seller, validInput(time.Now().Add(time.Hour)))
	require.NoError(t, err)

	require.NoError(t, processor.CloseExpired())

	var auction types.Auction
	require.NoError(t, db.Where("auction_id = ?", created.AuctionID).First(&auction).Error)
	require.Equal(t, types.AuctionStatusActive, auction.Status)
}
