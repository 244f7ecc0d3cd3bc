package broadcast

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ksred/auction-api/internal/auth"
	"github.com/ksred/auction-api/internal/types"
)

var (
	user42 = auth.Identity{UserID: "42", UserName: "FortyTwo", Verified: true}
	user43 = auth.Identity{UserID: "43", UserName: "FortyThree", Verified: true}
)

func TestSubscribe_Authorization(t *testing.T) {
	registry := NewRegistry()
	defer registry.Close()

	// Anyone may join the public topic and their own private topic.
	_, err := registry.Subscribe(TopicPublic, user42)
	require.NoError(t, err)
	own, err := registry.Subscribe(UserTopic("42"), user42)
	require.NoError(t, err)
	own.Cancel()

	// Another identity's private topic is denied, not silently ignored.
	_, err = registry.Subscribe(UserTopic("42"), user43)
	require.ErrorIs(t, err, ErrForbiddenTopic)

	_, err = registry.Subscribe("orders:all", user42)
	require.ErrorIs(t, err, ErrUnknownTopic)
}

func TestPublish_FansOutToAllSubscribers(t *testing.T) {
	registry := NewRegistry()
	defer registry.Close()

	first, err := registry.Subscribe(TopicPublic, user42)
	require.NoError(t, err)
	second, err := registry.Subscribe(TopicPublic, user43)
	require.NoError(t, err)

	registry.Publish(TopicPublic, types.EventNewBid, types.BidEvent{
		AuctionID: "AUC_1",
		Amount:    "150.00",
		UserName:  "FortyTwo",
	})

	for _, sub := range []*Subscription{first, second} {
		frame := <-sub.C
		require.Contains(t, string(frame), `"event":"new_bid"`)
		require.Contains(t, string(frame), `"auction_id":"AUC_1"`)
	}
}

func TestPublish_AbsentTopicIsNoOp(t *testing.T) {
	registry := NewRegistry()
	defer registry.Close()

	// Must not panic or block with no subscribers anywhere.
	registry.Publish(TopicPublic, types.EventStatusUpdate, types.OrderStatusEvent{OrderID: "ORD_1", Status: "Shipped"})
	registry.Publish(UserTopic("42"), types.EventNewNotification, nil)
}

func TestPublish_PrivateTopicIsolation(t *testing.T) {
	registry := NewRegistry()
	defer registry.Close()

	own, err := registry.Subscribe(UserTopic("42"), user42)
	require.NoError(t, err)
	other, err := registry.Subscribe(UserTopic("43"), user43)
	require.NoError(t, err)

	registry.Publish(UserTopic("42"), types.EventNewNotification, types.NotificationEvent{ID: "NTF_1", UserID: "42"})

	require.Len(t, own.C, 1)
	require.Empty(t, other.C)
}

func TestPublish_SlowSubscriberDropsFrames(t *testing.T) {
	registry := NewRegistry()
	defer registry.Close()

	sub, err := registry.Subscribe(TopicPublic, user42)
	require.NoError(t, err)

	// Overfill the buffer; the publisher must never block.
	for i := 0; i < cap(sub.C)+5; i++ {
		registry.Publish(TopicPublic, types.EventNewBid, types.BidEvent{AuctionID: "AUC_1"})
	}
	require.Len(t, sub.C, cap(sub.C))
}

func TestTopicsAreGarbageCollected(t *testing.T) {
	registry := NewRegistry()
	defer registry.Close()

	sub, err := registry.Subscribe(UserTopic("42"), user42)
	require.NoError(t, err)
	require.Equal(t, 1, registry.SubscriberCount(UserTopic("42")))

	sub.Cancel()
	require.Equal(t, 0, registry.SubscriberCount(UserTopic("42")))

	registry.mu.RLock()
	_, exists := registry.topics[UserTopic("42")]
	registry.mu.RUnlock()
	require.False(t, exists, "empty topics must be removed from the registry")

	// Cancel is idempotent.
	sub.Cancel()
}
