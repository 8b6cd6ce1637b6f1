package gateway

import (
	"strconv"
	"sync"
	"time"
)

// StreamEvent is the envelope every websocket frame carries. Event ids
// are minted per instance; clients use last_event_id to replay frames
// missed during a short reconnect to the same instance. The room-joined
// snapshot, not the replay buffer, is the authoritative state.
type StreamEvent struct {
	EventID   string `json:"event_id"`
	Event     string `json:"event"`
	SessionID string `json:"session_id"`
	ServerTS  int64  `json:"server_ts"`
	Data      any    `json:"data"`
}

// EventBuffer keeps a bounded ordered window of session-scoped events
// for reconnect replay.
type EventBuffer struct {
	mu     sync.Mutex
	nextID int64
	max    int
	events []StreamEvent
}

func NewEventBuffer(max int) *EventBuffer {
	if max <= 0 {
		max = 500
	}
	return &EventBuffer{max: max}
}

func (b *EventBuffer) Append(event, sessionID string, data any) StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	ev := StreamEvent{
		EventID:   strconv.FormatInt(b.nextID, 10),
		Event:     event,
		SessionID: sessionID,
		ServerTS:  time.Now().UnixMilli(),
		Data:      data,
	}
	b.events = append(b.events, ev)
	if len(b.events) > b.max {
		b.events = b.events[len(b.events)-b.max:]
	}
	return ev
}

// ReplayAfter returns the buffered events for sessionID newer than
// lastEventID. An empty or unparseable id replays the whole window.
func (b *EventBuffer) ReplayAfter(sessionID, lastEventID string) []StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	last, err := strconv.ParseInt(lastEventID, 10, 64)
	if lastEventID == "" || err != nil {
		last = 0
	}
	var out []StreamEvent
	for _, ev := range b.events {
		if ev.SessionID != sessionID {
			continue
		}
		id, _ := strconv.ParseInt(ev.EventID, 10, 64)
		if id > last {
			out = append(out, ev)
		}
	}
	return out
}
