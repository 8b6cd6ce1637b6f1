package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"codeclash/internal/session"
)

const joinWait = 10 * time.Second

// SessionControl is the slice of the coordinator the gateway drives.
type SessionControl interface {
	Admit(ctx context.Context, sessionID, playerID, name string) (*session.Session, error)
	PlayerDisconnected(sessionID, playerID string)
}

type joinMessage struct {
	Type        string `json:"type"`
	PlayerID    string `json:"player_id"`
	Name        string `json:"name"`
	LastEventID string `json:"last_event_id,omitempty"`
}

// Handler upgrades player connections and runs their read side. A
// connection must open with a join message; everything after that is
// server push plus keepalive.
type Handler struct {
	hub      *Hub
	store    session.Store
	coord    SessionControl
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewHandler(hub *Hub, st session.Store, coord SessionControl) *Handler {
	return &Handler{
		hub:      hub,
		store:    st,
		coord:    coord,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		now:      time.Now,
	}
}

func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	join, err := readJoin(conn)
	if err != nil {
		closeWithError(conn, "bad_join")
		return
	}

	ctx := r.Context()
	sessionID, err := h.store.SessionForPlayer(ctx, join.PlayerID)
	if err != nil {
		closeWithError(conn, "no_session")
		return
	}
	s, err := h.coord.Admit(ctx, sessionID, join.PlayerID, join.Name)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			closeWithError(conn, "no_session")
		case errors.Is(err, session.ErrNotExpected):
			closeWithError(conn, "not_expected")
		default:
			log.Error().Err(err).Str("session_id", sessionID).Msg("admit failed")
			closeWithError(conn, "internal")
		}
		return
	}

	c := newClient(conn, join.PlayerID, sessionID, join.Name)
	h.hub.register(c)
	go c.writeLoop()
	log.Info().
		Str("conn_id", c.id).
		Str("session_id", sessionID).
		Str("player_id", join.PlayerID).
		Msg("player connected")

	h.sendSnapshot(c, s)
	for _, ev := range h.hub.buffer.ReplayAfter(sessionID, join.LastEventID) {
		if frame, err := json.Marshal(ev); err == nil {
			safeSend(c.send, frame)
		}
	}

	h.readLoop(c)

	if h.hub.unregister(c) {
		log.Info().
			Str("conn_id", c.id).
			Str("session_id", sessionID).
			Str("player_id", join.PlayerID).
			Msg("player disconnected")
		h.coord.PlayerDisconnected(sessionID, join.PlayerID)
	}
}

func readJoin(conn *websocket.Conn) (*joinMessage, error) {
	_ = conn.SetReadDeadline(time.Now().Add(joinWait))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var join joinMessage
	if err := json.Unmarshal(msg, &join); err != nil {
		return nil, err
	}
	if join.Type != "join" || join.PlayerID == "" {
		return nil, errors.New("malformed join")
	}
	return &join, nil
}

// readLoop keeps the connection's read side alive. Players have no
// inbound commands over the socket; submissions arrive via HTTP and the
// grading pipeline. Reads exist only to notice pongs and disconnects.
func (h *Handler) readLoop(c *Client) {
	defer func() { _ = c.conn.Close() }()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// sendSnapshot delivers the authoritative room state directly to the new
// connection. The snapshot supersedes anything the replay buffer missed.
func (h *Handler) sendSnapshot(c *Client, s *session.Session) {
	remaining := int64(0)
	if s.Status == session.StatusActive {
		if left := s.Deadline().Sub(h.now()); left > 0 {
			remaining = int64(left.Seconds())
		}
	}
	frame, err := json.Marshal(StreamEvent{
		Event:     "room-joined",
		SessionID: s.ID,
		ServerTS:  h.now().UnixMilli(),
		Data: map[string]any{
			"session_id":    s.ID,
			"status":        s.Status,
			"problem_id":    s.ProblemID,
			"difficulty":    s.Difficulty,
			"duration_sec":  s.DurationS,
			"remaining_sec": remaining,
			"players":       s.Admitted,
			"winner_id":     s.WinnerID,
			"reason":        s.Reason,
		},
	})
	if err != nil {
		return
	}
	safeSend(c.send, frame)
}

func closeWithError(conn *websocket.Conn, code string) {
	frame, _ := json.Marshal(StreamEvent{Event: "error", Data: map[string]any{"code": code}})
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.TextMessage, frame)
	_ = conn.Close()
}
