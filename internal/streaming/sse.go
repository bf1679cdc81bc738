package streaming

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Handler streams hub events as Server-Sent Events. The flow and type query
// parameters narrow the subscription; type takes a comma-separated list.
func Handler(hub EventHub) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		filter := EventFilter{FlowID: r.URL.Query().Get("flow")}
		if types := r.URL.Query().Get("type"); types != "" {
			filter.EventTypes = strings.Split(types, ",")
		}

		ch, cancel, err := hub.Subscribe(r.Context(), filter)
		if err != nil {
			http.Error(w, "subscribe failed", http.StatusInternalServerError)
			return
		}
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case event, ok := <-ch:
				if !ok {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
				flusher.Flush()
			}
		}
	})
}
