package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schovi/shellcopilot/internal/approval"
	"github.com/schovi/shellcopilot/internal/apperr"
	"github.com/schovi/shellcopilot/internal/outbuf"
	"github.com/schovi/shellcopilot/internal/ptysup"
)

// Registry is the map from session identifier to session record described
// in §4.7. Lookups are cheap and non-blocking; mutations are serialized
// per-session, not per-registry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	log *slog.Logger

	outputBufferCapacity int
	aiContextCapacity    int

	idleTimeout time.Duration
	sweepDone   chan struct{}
}

// Options configure a new Registry; grounded on internal/daemon/server.go's
// functional-options pattern (WithStorage, WithStoppedTTL).
type Options struct {
	Logger               *slog.Logger
	OutputBufferCapacity int
	AIContextCapacity    int
	IdleTimeout          time.Duration
}

// NewRegistry builds an empty Registry and starts its idle-session sweep,
// the decision recorded for SPEC_FULL.md §9's "idle cleanup" open question,
// grounded on internal/daemon/server.go's runCleanup/cleanupExpiredSessions
// TTL reaper.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		sessions:             make(map[uuid.UUID]*Session),
		log:                  opts.Logger,
		outputBufferCapacity: opts.OutputBufferCapacity,
		aiContextCapacity:    opts.AIContextCapacity,
		idleTimeout:          opts.IdleTimeout,
		sweepDone:            make(chan struct{}),
	}
	if r.outputBufferCapacity <= 0 {
		r.outputBufferCapacity = 64 * 1024
	}
	if r.aiContextCapacity <= 0 {
		r.aiContextCapacity = 100
	}
	if r.idleTimeout > 0 {
		go r.sweepLoop()
	}
	return r
}

// Create allocates a new Session: a fresh PTY Supervisor running the AI
// CLI, an Approval Channel, and an Output Buffer. Creation is atomic — a
// caller never observes a half-initialized session.
func (r *Registry) Create(aiCLICommand string, aiCLIArgs []string) (*Session, error) {
	pty, err := ptysup.Spawn(aiCLICommand, aiCLIArgs, nil, 80, 24)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "spawn AI CLI for new session", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	sess := &Session{
		ID:             uuid.New(),
		CreatedAt:      now,
		lastActivityAt: now,
		PTY:            pty,
		Approval:       approval.New(),
		Output:         outbuf.New(r.outputBufferCapacity, r.aiContextCapacity),
		ctx:            ctx,
		cancel:         cancel,
	}

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()

	if r.log != nil {
		r.log.Info("session created", slog.String("session_id", sess.ID.String()))
	}
	return sess, nil
}

// Get looks up a session by id.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// End performs the destruction cascade and removes id from the registry.
// Idempotent: repeated calls after the first return apperr.SessionNotFound
// and have no side effect.
func (r *Registry) End(id uuid.UUID) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return apperr.New(apperr.SessionNotFound, "no such session")
	}

	sess.End()
	if r.log != nil {
		r.log.Info("session ended", slog.String("session_id", id.String()))
	}
	return nil
}

// Len reports the number of live sessions, used by round-trip tests.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown stops the idle sweep and ends every remaining session.
func (r *Registry) Shutdown() {
	close(r.sweepDone)

	r.mu.Lock()
	ids := make([]uuid.UUID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		_ = r.End(id)
	}
}

const defaultSweepInterval = 30 * time.Second

// sweepIntervalFor scales the sweep tick to the configured idle timeout so
// short test timeouts are actually observed, while production-scale
// timeouts (minutes) still sweep at a sane fixed cadence.
func (r *Registry) sweepIntervalFor() time.Duration {
	if quarter := r.idleTimeout / 4; quarter > 0 && quarter < defaultSweepInterval {
		return quarter
	}
	return defaultSweepInterval
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.sweepIntervalFor())
	defer ticker.Stop()
	for {
		select {
		case <-r.sweepDone:
			return
		case <-ticker.C:
			r.sweepIdleSessions()
		}
	}
}

func (r *Registry) sweepIdleSessions() {
	now := time.Now()

	r.mu.RLock()
	var idle []uuid.UUID
	for id, sess := range r.sessions {
		if now.Sub(sess.LastActivity()) > r.idleTimeout {
			idle = append(idle, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range idle {
		if r.log != nil {
			r.log.Info("ending idle session", slog.String("session_id", id.String()))
		}
		_ = r.End(id)
	}
}
