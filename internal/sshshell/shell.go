// Package sshshell implements the SSH Shell component: an SSH transport,
// authenticated channel, PTY-backed interactive shell, with a read stream,
// a shared write sink, resize control, and close.
//
// Grounded on gluk-w-claworc/control-plane's internal/sshterminal/
// terminal.go (RequestPty/StdinPipe/StdoutPipe/WindowChange) and
// internal/sshmanager/manager.go (ssh.ClientConfig construction,
// context-cancellable ssh.Dial, password-vs-key auth branch, error
// surfacing). Uses golang.org/x/crypto/ssh.
package sshshell

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/schovi/shellcopilot/internal/apperr"
)

const (
	connectTimeout = 10 * time.Second
	minGeometry    = 1
	maxGeometry    = 1024
)

// Auth carries exactly one of Password or PrivateKey (PEM, optional
// Passphrase), per the ssh_connect tool contract in §4.5.
type Auth struct {
	Password   string
	PrivateKey string
	Passphrase string
}

// Shell is one authenticated SSH transport + interactive channel.
type Shell struct {
	client *ssh.Client
	sess   *ssh.Session

	stdin  io.WriteCloser
	stdout io.Reader

	writeMu sync.Mutex
	mu      sync.Mutex
	closed  bool

	subMu       sync.Mutex
	subscribers map[chan []byte]struct{}
}

// Connect opens a TCP transport to host:port, authenticates with either a
// password or a private key, opens a channel, requests a pseudo-terminal
// (xterm-256color, the supplied geometry), and starts an interactive
// shell, per §4.4.
func Connect(ctx context.Context, host string, port int, username string, auth Auth, hostKeyCB ssh.HostKeyCallback, cols, rows int) (*Shell, error) {
	var authMethods []ssh.AuthMethod
	switch {
	case auth.PrivateKey != "":
		signer, err := parseSigner(auth.PrivateKey, auth.Passphrase)
		if err != nil {
			return nil, apperr.Wrap(apperr.AuthFailed, "parse private key", err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	case auth.Password != "":
		authMethods = append(authMethods, ssh.Password(auth.Password))
	default:
		return nil, apperr.New(apperr.InvalidArgument, "one of password or private_key is required")
	}

	clientCfg := &ssh.ClientConfig{
		User:            username,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCB,
		Timeout:         connectTimeout,
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	type dialResult struct {
		client *ssh.Client
		err    error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		client, err := ssh.Dial("tcp", addr, clientCfg)
		resultCh <- dialResult{client, err}
	}()

	var client *ssh.Client
	select {
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.ConnectTimeout, "connect cancelled", ctx.Err())
	case r := <-resultCh:
		if r.err != nil {
			return nil, classifyDialError(r.err)
		}
		client = r.client
	}

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, apperr.Wrap(apperr.TransportFailed, "open channel", err)
	}

	cols, rows = clamp(cols), clamp(rows)
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("xterm-256color", rows, cols, modes); err != nil {
		sess.Close()
		client.Close()
		return nil, apperr.Wrap(apperr.TransportFailed, "request pty", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, apperr.Wrap(apperr.TransportFailed, "stdin pipe", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, apperr.Wrap(apperr.TransportFailed, "stdout pipe", err)
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, apperr.Wrap(apperr.TransportFailed, "stderr pipe", err)
	}

	if err := sess.Shell(); err != nil {
		sess.Close()
		client.Close()
		return nil, apperr.Wrap(apperr.TransportFailed, "start shell", err)
	}

	s := &Shell{
		client:      client,
		sess:        sess,
		stdin:       stdin,
		stdout:      stdout,
		subscribers: make(map[chan []byte]struct{}),
	}

	go s.pump(stdout)
	go s.pump(stderr) // extended data (stderr), merged into the same byte stream per §4.4

	return s, nil
}

// AuthError is a sentinel error type for simulating an SSH server-side
// authentication rejection in tests; golang.org/x/crypto/ssh does not
// expose a typed client-side auth error, so tests construct this instead.
type AuthError struct{}

func (*AuthError) Error() string { return "ssh: auth error" }

func classifyDialError(err error) error {
	if _, ok := err.(*AuthError); ok {
		return apperr.Wrap(apperr.AuthFailed, "ssh authenticate", err)
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return apperr.Wrap(apperr.ConnectTimeout, "ssh dial", err)
	}
	if _, ok := err.(*net.OpError); ok {
		return apperr.Wrap(apperr.HostUnreachable, "ssh dial", err)
	}
	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "authentication") {
		return apperr.Wrap(apperr.AuthFailed, "ssh authenticate", err)
	}
	return apperr.Wrap(apperr.TransportFailed, "ssh dial", err)
}

// Subscribe registers a channel that receives the byte chunks read from
// the channel's data+extended-data streams, merged into arrival order. The
// channel buffers 64 chunks; a chunk read while it is full is dropped for
// this subscriber.
func (s *Shell) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (s *Shell) Unsubscribe(ch chan []byte) {
	s.subMu.Lock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.subMu.Unlock()
}

// Write appends to the channel input; serialized with an internal lock so
// user keystrokes and Tool-Service-approved commands linearize.
func (s *Shell) Write(p []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return apperr.New(apperr.Closed, "ssh shell closed")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.stdin.Write(p)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "write ssh channel", err)
	}
	return nil
}

// Resize issues an SSH window-change request; clamped to [1, 1024].
func (s *Shell) Resize(cols, rows int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperr.New(apperr.Closed, "ssh shell closed")
	}
	s.mu.Unlock()

	cols, rows = clamp(cols), clamp(rows)
	if err := s.sess.WindowChange(rows, cols); err != nil {
		return apperr.Wrap(apperr.Internal, "ssh window-change", err)
	}
	return nil
}

// Close sends channel EOF + close, closes the transport. Idempotent.
func (s *Shell) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.sess.Close()
	err := s.client.Close()

	s.subMu.Lock()
	for ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = make(map[chan []byte]struct{})
	s.subMu.Unlock()

	return err
}

func (s *Shell) pump(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.broadcast(chunk)
		}
		if err != nil {
			return
		}
	}
}

func (s *Shell) broadcast(chunk []byte) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- chunk:
		default:
		}
	}
}

func parseSigner(pemKey, passphrase string) (ssh.Signer, error) {
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase([]byte(pemKey), []byte(passphrase))
	}
	return ssh.ParsePrivateKey([]byte(pemKey))
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
