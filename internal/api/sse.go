package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/charliek/horn/internal/domain"
)

// sseStart sets the stream headers and announces the connection
func sseStart(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()
	return flusher, true
}

// sseSend writes one data frame. A write error means the client is gone.
func sseSend(w http.ResponseWriter, flusher http.Flusher, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// StreamLogs handles GET /api/v1/logs/stream (SSE)
func (h *Handlers) StreamLogs(w http.ResponseWriter, r *http.Request) {
	filter := domain.LogFilter{
		Pattern:   r.URL.Query().Get("pattern"),
		IsRegex:   r.URL.Query().Get("regex") == "true",
		ErrorOnly: r.URL.Query().Get("errors") == "true",
	}
	if processes := r.URL.Query().Get("process"); processes != "" {
		filter.Processes = strings.Split(processes, ",")
	}

	// Subscribe before headers so a bad pattern still gets a JSON error
	subID, ch, err := h.logManager.Subscribe(filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer h.logManager.Unsubscribe(subID)

	flusher, ok := sseStart(w)
	if !ok {
		return
	}

	// Slow clients drop entries in the subscription buffer rather than
	// blocking the log manager.
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-ch:
			if !ok {
				return
			}
			if err := sseSend(w, flusher, ToLogEntryResponse(entry)); err != nil {
				h.logger.Debug("log stream closed", "error", err)
				return
			}
		}
	}
}

// StreamEvents handles GET /api/v1/events (SSE)
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	ch := h.ctl.Subscribe()
	defer h.ctl.Unsubscribe(ch)

	flusher, ok := sseStart(w)
	if !ok {
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := sseSend(w, flusher, ToEventResponse(event)); err != nil {
				h.logger.Debug("event stream closed", "error", err)
				return
			}
		}
	}
}
