package httpapi

import (
	"fmt"
	"net/http"
	"time"
)

// streamUpdates pushes every notifier stamp as a Server-Sent Event. Stamps
// sent before the client connected are not replayed.
func (rt *Router) streamUpdates(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := rt.deps.Updates.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(rt.deps.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case stamp, ok := <-sub.C():
			if !ok {
				return
			}
			fmt.Fprintf(w, "id: %d\nevent: shopping-list-updated\ndata: %d\n\n", stamp, stamp)
			flusher.Flush()
		}
	}
}
