package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/logger"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/notify"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/telemetry"
)

// subscribeHandler streams change notices for one topic over SSE.
type subscribeHandler struct {
	registry  notify.Registry
	metrics   *telemetry.NotifyMetrics
	keepAlive time.Duration
}

// ServeHTTP handles GET /api/cr/subscribe/{kind}/{id}
func (h *subscribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorResponse(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	kind, err := notify.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeSSEError(w, flusher, err.Error())
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeSSEError(w, flusher, "invalid entity id")
		return
	}

	topic, err := notify.NewTopic(kind, id)
	if err != nil {
		writeSSEError(w, flusher, err.Error())
		return
	}

	sub, err := h.registry.Subscribe(r.Context(), topic)
	if err != nil {
		writeSSEError(w, flusher, "subscribe failed: "+err.Error())
		return
	}
	defer sub.Close()

	h.metrics.SSESessionStarted(r.Context(), topic)
	defer h.metrics.SSESessionEnded(r.Context(), topic)

	logger.Debugf("SSE stream opened for topic %s", topic)
	flusher.Flush()

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case notice, open := <-sub.C():
			if !open {
				// Broker shut down, end the stream.
				return
			}
			data, err := json.Marshal(notice)
			if err != nil {
				// One bad notice must not kill the stream.
				writeSSEError(w, flusher, "failed to encode notice")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: changed\nid: %s\ndata: %s\n\n", notice.ID, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSEError emits a recoverable error event on the stream.
func writeSSEError(w http.ResponseWriter, flusher http.Flusher, message string) {
	payload, err := json.Marshal(ErrorResponse{Error: message})
	if err != nil {
		return
	}
	if _, err := fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload); err != nil {
		return
	}
	flusher.Flush()
}
