// Package session implements the Session Registry: the root ownership
// scope aggregating one PTY Supervisor, an optional SSH Shell, an Approval
// Channel, and an Output Buffer, per SPEC_FULL.md §3.
//
// Grounded on internal/daemon/server.go's Server{sessions, ptys, cmds,
// doneChans map[string]...} and its sync.RWMutex-guarded CRUD, generalized
// from a named-session Unix-socket daemon to a UUID-keyed registry of
// aggregate records.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schovi/shellcopilot/internal/apperr"
	"github.com/schovi/shellcopilot/internal/approval"
	"github.com/schovi/shellcopilot/internal/outbuf"
	"github.com/schovi/shellcopilot/internal/ptysup"
	"github.com/schovi/shellcopilot/internal/sshshell"
)

// Session is the root entity described in §3.
type Session struct {
	ID uuid.UUID

	CreatedAt time.Time

	mu             sync.RWMutex
	lastActivityAt time.Time

	PTY      *ptysup.Supervisor
	Approval *approval.Channel
	Output   *outbuf.Buffer

	ssh   *sshshell.Shell
	sshMu sync.RWMutex

	cancel context.CancelFunc
	ctx    context.Context
}

// Touch refreshes last_activity_at, used by every stream/tool-call
// interaction to feed the idle-timeout sweep decided in SPEC_FULL.md §9.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivityAt = time.Now()
	s.mu.Unlock()
}

// LastActivity reports the last recorded activity time.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivityAt
}

// Context is the session-root cancellation token, cancelled by End. The
// snapshot feeder in internal/router watches it; the Event Gateway's
// stream pumps do not derive contexts from it and stop when their
// connection fails or their PTY/SSH subscriber channel is closed.
func (s *Session) Context() context.Context { return s.ctx }

// SSH returns the currently attached SSH Shell, if any.
func (s *Session) SSH() (*sshshell.Shell, bool) {
	s.sshMu.RLock()
	defer s.sshMu.RUnlock()
	return s.ssh, s.ssh != nil
}

// SetSSH replaces any prior SSH state after closing it, per the ssh_connect
// tool contract in §4.5.
func (s *Session) SetSSH(sh *sshshell.Shell) {
	s.sshMu.Lock()
	old := s.ssh
	s.ssh = sh
	s.sshMu.Unlock()
	if old != nil {
		old.Close()
	}
	if sh != nil {
		go s.bridgeSSHOutput(sh)
	}
}

// bridgeSSHOutput forwards SSH Shell reads into the Output Buffer, started
// whenever SetSSH installs a new shell. Grounded on internal/daemon/
// server.go's captureOutput append-to-storage loop.
func (s *Session) bridgeSSHOutput(sh *sshshell.Shell) {
	ch := sh.Subscribe()
	for chunk := range ch {
		s.Output.Append(chunk)
	}
}

// End cascades cancellation to every task owned by the session, closes SSH,
// kills the PTY child, and drops buffers, per §3's destruction cascade.
func (s *Session) End() {
	s.cancel()
	if sh, ok := s.SSH(); ok {
		sh.Close()
	}
	if s.PTY != nil {
		s.PTY.Close()
	}
}

// errSessionClosed is the Closed error for operations attempted after End;
// no function in this package returns it.
var errSessionClosed = apperr.New(apperr.Closed, "session ended")
