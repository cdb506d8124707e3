package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/florentina1509/dizidunya/internal/engine"
)

const maxEventBody = 64 << 10

type eventEnvelope struct {
	Type string `json:"type"`
}

// eventsHandler accepts domain events from the CRUD backend and hands them
// to the bridge. It answers before any client has been notified.
func (a *App) eventsHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBody))
	if err != nil {
		a.writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
		return
	}

	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be a json object"})
		return
	}
	if env.Type == "" {
		a.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "field 'type' is required", "types": a.events.Names()})
		return
	}

	ev, err := a.events.Decode(env.Type, body)
	if err != nil {
		resp := map[string]any{"error": err.Error()}
		if errors.Is(err, engine.ErrUnknownEvent) {
			resp["types"] = a.events.Names()
		}
		a.writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	a.bridge.Emit(ev)
	a.logger.Debug("Domain event accepted", slog.String("type", env.Type))
	a.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) statsHandler(w http.ResponseWriter, r *http.Request) {
	topics, conns := a.registry.Stats()
	a.writeJSON(w, http.StatusOK, map[string]any{
		"topics":                topics,
		"connections":           conns,
		"notifications_dropped": a.bridge.Dropped(),
	})
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("Failed to write JSON response", slog.Int("status", status), slog.Any("error", err))
	}
}
