package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleStatusStream pushes the job's status as server-sent events until the
// job is terminal or the client goes away.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jobID := r.PathValue("job_id")
	registry := s.queue.Registry()
	if _, ok := registry.Get(jobID); !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// send reports whether the stream should continue.
	send := func() bool {
		job, ok := registry.Get(jobID)
		if !ok {
			fmt.Fprint(w, "event: gone\ndata: {}\n\n")
			flusher.Flush()
			return false
		}
		payload, err := json.Marshal(newStatusResponse(job))
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		return !job.Status.Terminal()
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
