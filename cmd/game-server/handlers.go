package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"codeclash/internal/session"
)

type progressRecorder interface {
	RecordProgress(ctx context.Context, sessionID, playerID string, passed, total int) error
}

// progressHandler accepts grading reports delivered over HTTP, the direct
// path beside the grading-result topic.
func progressHandler(coord progressRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "session_id")
		var body struct {
			PlayerID string `json:"player_id"`
			Passed   int    `json:"passed"`
			Total    int    `json:"total"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if sessionID == "" || body.PlayerID == "" || body.Total <= 0 || body.Passed < 0 || body.Passed > body.Total {
			writeHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		err := coord.RecordProgress(r.Context(), sessionID, body.PlayerID, body.Passed, body.Total)
		switch {
		case errors.Is(err, session.ErrNotFound):
			writeHTTPError(w, http.StatusNotFound, "session_not_found")
		case errors.Is(err, session.ErrNotExpected):
			writeHTTPError(w, http.StatusForbidden, "player_not_expected")
		case err != nil:
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		}
	}
}

func healthHandler(rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "redis": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "redis": "up"})
	}
}
