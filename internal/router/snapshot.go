package router

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/schovi/shellcopilot/internal/apperr"
	"github.com/schovi/shellcopilot/internal/session"
	"github.com/schovi/shellcopilot/internal/vterm"
)

// snapshotStore lazily maintains one vterm.Screen per session, fed by that
// session's PTY Supervisor broadcast, so GET .../snapshot can render the
// AI-terminal's current screen as plain text without replaying history.
//
// Grounded on the teacher daemon's use of internal/vterm.Screen for its
// TUI sessions (kept in DESIGN.md's "Diagnostic snapshot endpoint" entry);
// retargeted here from a CLI-local structure to a lazily-populated,
// registry-scoped cache torn down when the owning session ends.
type snapshotStore struct {
	mu      sync.Mutex
	screens map[uuid.UUID]*vterm.Screen
}

func newSnapshotStore() *snapshotStore {
	return &snapshotStore{screens: make(map[uuid.UUID]*vterm.Screen)}
}

func (s *snapshotStore) screenFor(sess *session.Session) *vterm.Screen {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scr, ok := s.screens[sess.ID]; ok {
		return scr
	}

	scr := vterm.New(80, 24)
	s.screens[sess.ID] = scr

	ch := sess.PTY.Subscribe()
	go func() {
		for {
			select {
			case chunk, ok := <-ch:
				if !ok {
					return
				}
				scr.Write(chunk)
			case <-sess.Context().Done():
				sess.PTY.Unsubscribe(ch)
				return
			}
		}
	}()
	go func() {
		<-sess.Context().Done()
		s.mu.Lock()
		delete(s.screens, sess.ID)
		s.mu.Unlock()
		scr.Close()
	}()

	return scr
}

// snapshotRoutes registers the supplemental diagnostic snapshot endpoint.
func snapshotRoutes(r chi.Router, reg *session.Registry) {
	store := newSnapshotStore()
	r.Get("/api/session/{id}/snapshot", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, jsonEnvelope{Success: false, Error: "invalid session id", Kind: string(apperr.InvalidArgument)})
			return
		}
		sess, ok := reg.Get(id)
		if !ok {
			writeAppError(w, apperr.New(apperr.SessionNotFound, "no such session"))
			return
		}

		scr := store.screenFor(sess)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(scr.String()))
	})
}
