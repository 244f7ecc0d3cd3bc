package broadcast

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ksred/auction-api/internal/auth"
	"github.com/ksred/auction-api/internal/types"
)

// TopicPublic is the single global channel for bid and order-status events.
const TopicPublic = "public"

const userTopicPrefix = "user:"

var (
	ErrForbiddenTopic = errors.New("not authorized for topic")
	ErrUnknownTopic   = errors.New("unknown topic")
)

// UserTopic returns the private topic name for one identity.
func UserTopic(userID string) string {
	return userTopicPrefix + userID
}

// Subscription is one subscriber's membership in one topic. Messages
// arrive on C as pre-marshalled frames; a subscriber that falls behind
// has frames dropped rather than blocking the publisher.
type Subscription struct {
	Topic string
	C     chan []byte

	registry *Registry
	once     sync.Once
}

// Cancel removes the subscription from its topic and closes C.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.registry.remove(s)
	})
}

// Registry is the in-process publish/subscribe fan-out. It is created at
// startup; topics are created lazily on first subscribe and removed when
// their last subscriber leaves.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	closed bool
}

// NewRegistry creates an empty broadcast registry
func NewRegistry() *Registry {
	return &Registry{
		topics: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe joins the caller to a topic. A caller may join the public
// topic or their own private topic only; requesting another identity's
// private topic is an authorization failure, not a silent no-op.
func (r *Registry) Subscribe(topic string, identity auth.Identity) (*Subscription, error) {
	switch {
	case topic == TopicPublic:
	case strings.HasPrefix(topic, userTopicPrefix):
		if topic != UserTopic(identity.UserID) {
			return nil, ErrForbiddenTopic
		}
	default:
		return nil, ErrUnknownTopic
	}

	sub := &Subscription{
		Topic:    topic,
		C:        make(chan []byte, 16),
		registry: r,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.New("registry is closed")
	}

	subs, ok := r.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		r.topics[topic] = subs
	}
	subs[sub] = struct{}{}

	return sub, nil
}

// Publish sends an event to every current subscriber of the topic.
// Fire-and-forget: no acknowledgment, no persistence, and publishing to
// an absent topic is a silent no-op. A failed or slow delivery must never
// affect the caller, so frames to full buffers are dropped.
func (r *Registry) Publish(topic string, event string, data interface{}) {
	frame, err := json.Marshal(types.Envelope{Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Str("event", event).Msg("failed to marshal broadcast frame")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for sub := range r.topics[topic] {
		select {
		case sub.C <- frame:
		default:
			log.Warn().
				Str("topic", topic).
				Str("event", event).
				Msg("dropping frame for slow subscriber")
		}
	}
}

// Close cancels all subscriptions, typically during shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	all := make([]*Subscription, 0)
	for _, subs := range r.topics {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	r.topics = make(map[string]map[*Subscription]struct{})
	r.mu.Unlock()

	for _, sub := range all {
		s := sub
		s.once.Do(func() { close(s.C) })
	}
}

// SubscriberCount reports current membership of a topic.
func (r *Registry) SubscriberCount(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

func (r *Registry) remove(sub *Subscription) {
	r.mu.Lock()
	if subs, ok := r.topics[sub.Topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(r.topics, sub.Topic)
		}
	}
	r.mu.Unlock()
	close(sub.C)
}
