package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"codeclash/internal/pubsub"
)

const (
	sessionTopicPrefix = "events:session:"
	playerTopicPrefix  = "events:player:"
)

func sessionTopic(sessionID string) string { return sessionTopicPrefix + sessionID }
func playerTopic(playerID string) string   { return playerTopicPrefix + playerID }

// busEnvelope is the cross-instance wire form of one event. Instances
// re-wrap it in a StreamEvent with locally minted event ids on delivery.
type busEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub bridges coordinator events to live websocket connections. Emitting
// always goes through the shared pub/sub layer, so an event raised on any
// instance reaches the instance actually holding each player's socket.
type Hub struct {
	bus    pubsub.Bus
	buffer *EventBuffer

	mu        sync.Mutex
	byPlayer  map[string]*Client
	bySession map[string]map[*Client]struct{}
}

func NewHub(bus pubsub.Bus) *Hub {
	return &Hub{
		bus:       bus,
		buffer:    NewEventBuffer(500),
		byPlayer:  map[string]*Client{},
		bySession: map[string]map[*Client]struct{}{},
	}
}

// SessionEvent implements the coordinator's event fan-out for frames every
// participant should see.
func (h *Hub) SessionEvent(ctx context.Context, sessionID, event string, data any) {
	h.publish(ctx, sessionTopic(sessionID), event, data)
}

// PlayerEvent implements targeted delivery, wherever the player's socket
// lives.
func (h *Hub) PlayerEvent(ctx context.Context, playerID, event string, data any) {
	h.publish(ctx, playerTopic(playerID), event, data)
}

func (h *Hub) publish(ctx context.Context, topic, event string, data any) {
	payload, err := json.Marshal(busEnvelope{Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("event marshal failed")
		return
	}
	if err := h.bus.Publish(ctx, topic, payload); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("event publish failed")
	}
}

// Run subscribes to the event topics and delivers inbound frames to local
// connections until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	sub, err := h.bus.Subscribe(ctx, sessionTopicPrefix+"*", playerTopicPrefix+"*")
	if err != nil {
		return err
	}
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.C:
				if !ok {
					return
				}
				h.deliver(msg)
			}
		}
	}()
	return nil
}

func (h *Hub) deliver(msg pubsub.Message) {
	var env busEnvelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic).Msg("undecodable event dropped")
		return
	}
	switch {
	case strings.HasPrefix(msg.Topic, sessionTopicPrefix):
		h.deliverSession(strings.TrimPrefix(msg.Topic, sessionTopicPrefix), env)
	case strings.HasPrefix(msg.Topic, playerTopicPrefix):
		h.deliverPlayer(strings.TrimPrefix(msg.Topic, playerTopicPrefix), env)
	}
}

func (h *Hub) deliverSession(sessionID string, env busEnvelope) {
	ev := h.buffer.Append(env.Event, sessionID, env.Data)
	frame, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.bySession[sessionID] {
		safeSend(c.send, frame)
	}
}

func (h *Hub) deliverPlayer(playerID string, env busEnvelope) {
	h.mu.Lock()
	c := h.byPlayer[playerID]
	h.mu.Unlock()
	if c == nil {
		return
	}
	ev := h.buffer.Append(env.Event, c.sessionID, env.Data)
	frame, err := json.Marshal(ev)
	if err != nil {
		return
	}
	safeSend(c.send, frame)
}

// register installs c as the player's live connection, displacing any
// previous one on this instance.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old := h.byPlayer[c.playerID]; old != nil && old != c {
		h.dropLocked(old)
		safeClose(old.send)
		_ = old.conn.Close()
	}
	h.byPlayer[c.playerID] = c
	set := h.bySession[c.sessionID]
	if set == nil {
		set = map[*Client]struct{}{}
		h.bySession[c.sessionID] = set
	}
	set[c] = struct{}{}
}

// unregister removes c and reports whether it was still the player's
// registered connection. A displaced connection returns false so its
// teardown does not count as a disconnect.
func (h *Hub) unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byPlayer[c.playerID] != c {
		return false
	}
	h.dropLocked(c)
	safeClose(c.send)
	return true
}

func (h *Hub) dropLocked(c *Client) {
	if h.byPlayer[c.playerID] == c {
		delete(h.byPlayer, c.playerID)
	}
	if set := h.bySession[c.sessionID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.bySession, c.sessionID)
		}
	}
}

func (h *Hub) connected(playerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.byPlayer[playerID] != nil
}
