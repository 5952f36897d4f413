package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hyperengineering/nutrisync/internal/types"
)

const (
	// eventBuffer bounds the events queued for one slow client. Events
	// beyond it are dropped, matching the bus's at-most-once delivery.
	eventBuffer = 64

	keepAliveInterval = 25 * time.Second
)

// Events handles GET /api/v1/events as a server-sent events stream of
// dashboard events. The subscription ends when the client disconnects.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || h.events == nil {
		WriteProblem(w, r, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	ch := make(chan types.DashboardEvent, eventBuffer)
	off := h.events.On(func(e types.DashboardEvent) {
		select {
		case ch <- e:
		default:
			slog.Warn("event dropped for slow client",
				"component", "api",
				"action", "event_dropped",
				"type", e.Type,
			)
		}
	})
	defer off()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case e := <-ch:
			data, err := json.Marshal(e)
			if err != nil {
				slog.Error("failed to encode event", "component", "api", "type", e.Type, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
			flusher.Flush()
		}
	}
}
