package broadcast

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ksred/auction-api/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Authorization happens via the JWT, not the Origin header.
		return true
	},
}

// joinRequest is the only client-to-server frame: an explicit topic join.
type joinRequest struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// GinHandlers contains the websocket endpoint for the broadcaster
type GinHandlers struct {
	registry *Registry
}

// NewGinHandlers creates websocket handlers backed by the given registry
func NewGinHandlers(registry *Registry) *GinHandlers {
	return &GinHandlers{registry: registry}
}

// ServeHandler upgrades the connection and joins the caller to the public
// topic plus their own private topic. Additional join frames are accepted
// but re-checked against the authenticated identity.
func (h *GinHandlers) ServeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.IdentityFromContext(c)
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := &client{
			conn:     conn,
			registry: h.registry,
			identity: identity,
			frames:   make(chan []byte, 32),
			done:     make(chan struct{}),
			subs:     make(map[string]*Subscription),
		}
		client.run()
	}
}

// client multiplexes one websocket connection over any number of topic
// subscriptions. All writes go through the write pump; gorilla connections
// do not support concurrent writers.
type client struct {
	conn     *websocket.Conn
	registry *Registry
	identity auth.Identity
	frames   chan []byte
	done     chan struct{}
	subs     map[string]*Subscription
}

func (cl *client) run() {
	defer cl.teardown()

	if err := cl.join(TopicPublic); err != nil {
		return
	}
	if err := cl.join(UserTopic(cl.identity.UserID)); err != nil {
		return
	}

	go cl.writePump()
	cl.readPump()
}

func (cl *client) join(topic string) error {
	if _, ok := cl.subs[topic]; ok {
		return nil
	}

	sub, err := cl.registry.Subscribe(topic, cl.identity)
	if err != nil {
		log.Warn().
			Err(err).
			Str("topic", topic).
			Str("user_id", cl.identity.UserID).
			Msg("subscription rejected")
		return err
	}
	cl.subs[topic] = sub

	go func() {
		for frame := range sub.C {
			select {
			case cl.frames <- frame:
			case <-cl.done:
				return
			}
		}
	}()
	return nil
}

func (cl *client) readPump() {
	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}

		var req joinRequest
		if err := json.Unmarshal(message, &req); err != nil || req.Action != "join" {
			continue
		}
		// Errors here are authorization failures already logged by join;
		// the connection stays up on its existing topics.
		_ = cl.join(req.Topic)
	}
}

func (cl *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-cl.frames:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cl.done:
			return
		}
	}
}

func (cl *client) teardown() {
	close(cl.done)
	for _, sub := range cl.subs {
		sub.Cancel()
	}
	_ = cl.conn.Close()
}
