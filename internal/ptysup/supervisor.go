// Package ptysup implements the PTY Supervisor: spawns the embedded AI CLI
// child bound to a real pseudo-terminal and exposes its byte stream, write
// sink, and resize control.
//
// Grounded on internal/daemon/server.go's handleCreate/captureOutput/
// handleSend/handleStop (pty.Start, 100ms-deadline polling read,
// SIGTERM-then-SIGKILL), generalized from a named long-lived daemon
// session into a per-Session lifecycle-bound supervisor. Wires the
// teacher's internal/ansi.TerminalResponder directly.
package ptysup

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/schovi/shellcopilot/internal/ansi"
	"github.com/schovi/shellcopilot/internal/apperr"
)

// killGracePeriod mirrors the teacher daemon's SIGTERM-then-SIGKILL delay.
const killGracePeriod = 3 * time.Second

const (
	minGeometry = 1
	maxGeometry = 1024
)

// Supervisor owns one child process attached to a pseudo-terminal.
type Supervisor struct {
	cmd  *exec.Cmd
	ptmx *os.File

	mu       sync.Mutex
	cols     int
	rows     int
	exited   bool
	closed   bool
	respond  *ansi.TerminalResponder

	subMu       sync.Mutex
	subscribers map[chan []byte]struct{}

	done chan struct{}
}

// Spawn forks a child attached to a newly-allocated pseudo-terminal
// master/slave pair; the child's stdio is the slave, the Supervisor holds
// the master. Clamps the initial geometry to [1, 1024] per §4.3.
func Spawn(program string, args, env []string, initialCols, initialRows int) (*Supervisor, error) {
	cols := clamp(initialCols)
	rows := clamp(initialRows)

	cmd := exec.Command(program, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "spawn AI CLI", err)
	}

	s := &Supervisor{
		cmd:         cmd,
		ptmx:        ptmx,
		cols:        cols,
		rows:        rows,
		subscribers: make(map[chan []byte]struct{}),
		done:        make(chan struct{}),
	}
	s.respond = ansi.NewTerminalResponder(ptmx, cols, rows)

	go s.pump()
	go s.waitExit()

	return s, nil
}

// Subscribe registers a channel that receives the byte chunks read from
// the master in source order, fanned out from the single PTY-reader task
// per §5. The channel buffers 64 chunks; a chunk read while it is full is
// dropped for this subscriber. Unsubscribe to stop.
func (s *Supervisor) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (s *Supervisor) Unsubscribe(ch chan []byte) {
	s.subMu.Lock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.subMu.Unlock()
}

// Write appends bytes to the master, retrying partial writes until fully
// drained or the master is closed.
func (s *Supervisor) Write(p []byte) error {
	s.mu.Lock()
	closed := s.closed
	ptmx := s.ptmx
	s.mu.Unlock()
	if closed {
		return apperr.New(apperr.Closed, "pty closed")
	}

	for len(p) > 0 {
		n, err := ptmx.Write(p)
		if err != nil {
			return apperr.Wrap(apperr.Internal, "write pty", err)
		}
		p = p[n:]
	}
	return nil
}

// Resize issues the terminal window-size control on the master; values
// are clamped to [1, 1024].
func (s *Supervisor) Resize(cols, rows int) error {
	cols, rows = clamp(cols), clamp(rows)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperr.New(apperr.Closed, "pty closed")
	}
	s.cols, s.rows = cols, rows
	s.respond.SetSize(cols, rows)
	ptmx := s.ptmx
	s.mu.Unlock()

	return pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Exited reports whether the child process has exited.
func (s *Supervisor) Exited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited
}

// Close sends a termination signal to the child and closes the master.
// Idempotent.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(syscall.SIGTERM)
		go func() {
			select {
			case <-s.done:
			case <-time.After(killGracePeriod):
				_ = s.cmd.Process.Kill()
			}
		}()
	}
	err := s.ptmx.Close()

	s.subMu.Lock()
	for ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = make(map[chan []byte]struct{})
	s.subMu.Unlock()

	return err
}

func (s *Supervisor) waitExit() {
	_ = s.cmd.Wait()
	s.mu.Lock()
	s.exited = true
	s.mu.Unlock()
	close(s.done)
}

// pump is the single PTY-reader task: master -> subscribers, fanned out in
// source order, with terminal capability queries answered directly on the
// master before anything reaches a subscriber.
func (s *Supervisor) pump() {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := s.respond.Process(buf[:n])
			if len(chunk) > 0 {
				out := make([]byte, len(chunk))
				copy(out, chunk)
				s.broadcast(out)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return
			}
			return
		}
	}
}

func (s *Supervisor) broadcast(chunk []byte) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- chunk:
		default:
		}
	}
}

func clamp(v int) int {
	if v < minGeometry {
		return minGeometry
	}
	if v > maxGeometry {
		return maxGeometry
	}
	return v
}
