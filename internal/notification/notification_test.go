package notification

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ksred/auction-api/internal/types"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&types.Notification{}))
	return NewService(db), db
}

func seedNotifications(t *testing.T, db *gorm.DB, userID string, count int, read bool) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < count; i++ {
		require.NoError(t, db.Create(&types.Notification{
			NotificationID: fmt.Sprintf("NTF_%s_%d_%t", userID, i, read),
			UserID:         userID,
			Message:        fmt.Sprintf("message %d", i),
			Link:           "/dashboard",
			IsRead:         read,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
}

func TestSummary(t *testing.T) {
	service, db := newTestService(t)

	seedNotifications(t, db, "alice", 12, false)
	seedNotifications(t, db, "alice", 3, true)
	seedNotifications(t, db, "bob", 2, false)

	summary, err := service.Summary("alice")
	require.NoError(t, err)
	require.Equal(t, int64(12), summary.UnreadCount)

	// Recent list caps at 10, newest first, and never leaks other users.
	require.Len(t, summary.Recent, 10)
	for i := 1; i < len(summary.Recent); i++ {
		require.False(t, summary.Recent[i].CreatedAt.After(summary.Recent[i-1].CreatedAt))
	}
	for _, n := range summary.Recent {
		require.Equal(t, "alice", n.UserID)
	}
}

func TestSummary_EmptyInbox(t *testing.T) {
	service, _ := newTestService(t)

	summary, err := service.Summary("nobody")
	require.NoError(t, err)
	require.Zero(t, summary.UnreadCount)
	require.Empty(t, summary.Recent)
}

func TestMarkAllRead_ScopedToRecipient(t *testing.T) {
	service, db := newTestService(t)

	seedNotifications(t, db, "alice", 4, false)
	seedNotifications(t, db, "bob", 2, false)

	require.NoError(t, service.MarkAllRead("alice"))

	aliceSummary, err := service.Summary("alice")
	require.NoError(t, err)
	require.Zero(t, aliceSummary.UnreadCount)

	bobSummary, err := service.Summary("bob")
	require.NoError(t, err)
	require.Equal(t, int64(2), bobSummary.UnreadCount)
}

func TestNotificationBuilders(t *testing.T) {
	now := time.Now()

	outbid := NewOutbid("alice", "Classic Guitar", "AUC_1", now)
	require.True(t, strings.HasPrefix(outbid.NotificationID, "NTF_"))
	require.Equal(t, "You have been outbid on Classic Guitar.", outbid.Message)
	require.Equal(t, "/auction/AUC_1", outbid.Link)
	require.False(t, outbid.IsRead)

	won := NewAuctionWon("alice", "Classic Guitar", "AUC_1", now)
	require.Contains(t, won.Message, "You won Classic Guitar")
	require.Equal(t, "/order/AUC_1", won.Link)

	status := NewOrderStatus("alice", "ORD_1", "Shipped", now)
	require.Equal(t, "Your order #ORD_1 has been updated to Shipped.", status.Message)
	require.Equal(t, "/dashboard", status.Link)
}
