package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/schovi/shellcopilot/internal/approval"
)

// ssePingInterval keeps idle SSE connections from being reaped by
// intermediate proxies; a comment line is not part of the event stream
// protocol and clients ignore it.
const ssePingInterval = 30 * time.Second

// SSE streams command_requested events to the AI CLI (or any observer
// that prefers a one-way stream over the bidirectional approval
// WebSocket), per §4.6 #4. Built directly against net/http.Flusher: no
// example repo in the corpus implements Server-Sent Events, so there is
// no third-party library to ground this on (see DESIGN.md's
// standard-library justifications).
func (h *Handler) SSE(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, ok := h.lookupSession(w, sessionID)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := sess.Approval.Subscribe()
	defer sess.Approval.Unsubscribe(sub)

	ticker := time.NewTicker(ssePingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if ev.Kind != approval.EventCommandRequested {
				continue
			}
			data, _ := json.Marshal(ApprovalFrame{Kind: FrameCommandRequested, ApprovalID: ev.ApprovalID, Command: ev.Command})
			fmt.Fprintf(w, "event: command_requested\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
