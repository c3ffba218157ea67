package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/prairie-backend/internal/config"
)

// PatternSubscriber is the slice of the Redis client the hub listens with.
type PatternSubscriber interface {
	PSubscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Client is one socket connection. Writes are serialized because gorilla
// connections allow a single concurrent writer.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Join subscribes the client to a variant's topic. Joining twice is a no-op.
func (c *Client) Join(variantID int64) {
	c.hub.join(c, variantID)
}

// Leave unsubscribes the client from a variant's topic.
func (c *Client) Leave(variantID int64) {
	c.hub.leave(c, variantID)
}

// Send writes v to the client.
func (c *Client) Send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteTyped(c.conn, v)
}

// SendError writes an error event to the client.
func (c *Client) SendError(msg string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteError(c.conn, msg)
}

// Hub tracks which clients watch which variant and fans grading status
// changes out to them.
type Hub struct {
	mu      sync.RWMutex
	topics  map[int64]map[*Client]struct{}
	clients map[*Client]map[int64]struct{}
	log     zerolog.Logger
}

// NewHub creates an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		topics:  make(map[int64]map[*Client]struct{}),
		clients: make(map[*Client]map[int64]struct{}),
		log:     log.With().Str("component", "grading_hub").Logger(),
	}
}

// Register wraps a new connection.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	c := &Client{hub: h, conn: conn}
	h.mu.Lock()
	h.clients[c] = make(map[int64]struct{})
	h.mu.Unlock()
	return c
}

// Unregister drops the client from every topic it joined.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for variantID := range h.clients[c] {
		members := h.topics[variantID]
		delete(members, c)
		if len(members) == 0 {
			delete(h.topics, variantID)
		}
	}
	delete(h.clients, c)
}

func (h *Hub) join(c *Client, variantID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	joined, ok := h.clients[c]
	if !ok {
		return
	}
	joined[variantID] = struct{}{}
	members, ok := h.topics[variantID]
	if !ok {
		members = make(map[*Client]struct{})
		h.topics[variantID] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) leave(c *Client, variantID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if joined, ok := h.clients[c]; ok {
		delete(joined, variantID)
	}
	if members, ok := h.topics[variantID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.topics, variantID)
		}
	}
}

// Subscribers returns how many clients watch variantID.
func (h *Hub) Subscribers(variantID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[variantID])
}

// Broadcast sends v to every client watching variantID and returns how many
// writes succeeded. A failed write only affects that client.
func (h *Hub) Broadcast(variantID int64, v interface{}) int {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.topics[variantID]))
	for c := range h.topics[variantID] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range members {
		if err := c.Send(v); err != nil {
			h.log.Debug().Err(err).Int64("variant_id", variantID).Msg("Broadcast write failed")
			continue
		}
		sent++
	}
	return sent
}

// Run relays grading status messages published on the variant channels to
// subscribed clients until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, sub PatternSubscriber) {
	pubsub := sub.PSubscribe(ctx, config.CacheKey.VariantGradingPattern())
	defer pubsub.Close()

	h.log.Info().Msg("Grading status hub started")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Grading status hub stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			variantID, ok := config.CacheKey.ParseVariantGradingChannel(msg.Channel)
			if !ok {
				h.log.Warn().Str("channel", msg.Channel).Msg("Ignoring message on unexpected channel")
				continue
			}
			h.Broadcast(variantID, StatusChangeResponse{
				Event: EventStatusChange,
				Data:  json.RawMessage(msg.Payload),
			})
		}
	}
}
