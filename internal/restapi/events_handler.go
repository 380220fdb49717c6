package restapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
)

// eventsHandler streams dashboard updates as server-sent events. The current
// view is sent immediately so the page paints without waiting for a tick;
// afterwards only views whose stop content changed are pushed.
func (api *RestAPI) eventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		api.sendError(w, r, http.StatusInternalServerError, "streaming non supporté")
		return
	}

	// The server-wide write deadline would sever the stream mid-connection.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	id, updates := api.Publisher.Subscribe()
	defer api.Publisher.Unsubscribe(id)

	initial, err := json.Marshal(api.Publisher.View())
	if err != nil {
		logging.LogError(logging.FromContext(r.Context()), "failed to encode initial event", err)
		return
	}
	if err := writeEvent(w, flusher, initial); err != nil {
		return
	}

	for {
		select {
		case payload, open := <-updates:
			if !open {
				return
			}
			if err := writeEvent(w, flusher, payload); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, payload []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
