package toolservice

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/schovi/shellcopilot/internal/apperr"
	"github.com/schovi/shellcopilot/internal/approval"
	"github.com/schovi/shellcopilot/internal/session"
	"github.com/schovi/shellcopilot/internal/sshshell"
)

const (
	minPort = 1
	maxPort = 65535

	defaultPort = 22

	minTimeoutSeconds     = 1
	maxTimeoutSeconds     = 300
	defaultTimeoutSeconds = 30

	maxApprovalWait = 30 * time.Second
	maxSampleWait   = 5 * time.Second

	minReadLines     = 1
	maxReadLines     = 500
	defaultReadLines = 50
)

// Service dispatches the three tools described in §4.5 against one
// session. A Service is constructed per JSON-RPC request with the
// session it targets; it owns no state of its own.
//
// Grounded on the deleted internal/mcp/tools.go's tool dispatch table,
// retargeted from the teacher's terminal-session tools (send_keys,
// read_screen) to the SSH-copilot tools named in SPEC_FULL.md §4.5.
type Service struct {
	sess      *session.Session
	hostKeyCB func() (ssh.HostKeyCallback, error)
}

// New builds a Service bound to sess. hostKeyCB is invoked once per
// ssh_connect call so the configured host-key policy (§9, "Decided —
// host-key verification") is honored without the Service importing
// internal/config directly.
func New(sess *session.Session, hostKeyCB func() (ssh.HostKeyCallback, error)) *Service {
	return &Service{sess: sess, hostKeyCB: hostKeyCB}
}

// Dispatch routes a decoded Request to the matching tool and returns the
// Response to send back verbatim.
func (s *Service) Dispatch(ctx context.Context, req Request) Response {
	s.sess.Touch()

	switch req.Method {
	case "ssh_connect":
		return s.sshConnect(ctx, req)
	case "ssh_execute":
		return s.sshExecute(ctx, req)
	case "ssh_read_output":
		return s.sshReadOutput(req)
	default:
		return errorResponse(req.ID, apperr.RPCCode(apperr.InvalidArgument), "unknown method: "+req.Method)
	}
}

type sshConnectParams struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	PrivateKey string `json:"private_key"`
	Passphrase string `json:"passphrase"`
}

type sshConnectResult struct {
	Status string `json:"status"`
}

func (s *Service) sshConnect(ctx context.Context, req Request) Response {
	var p sshConnectParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errorResponse(req.ID, apperr.RPCCode(apperr.InvalidArgument), "invalid params: "+err.Error())
	}

	if p.Port == 0 {
		p.Port = defaultPort
	}
	if p.Port < minPort || p.Port > maxPort {
		return errorResponse(req.ID, apperr.RPCCode(apperr.InvalidArgument), "port must be in [1, 65535]")
	}
	if p.Host == "" || p.Username == "" {
		return errorResponse(req.ID, apperr.RPCCode(apperr.InvalidArgument), "host and username are required")
	}
	if p.Password == "" && p.PrivateKey == "" {
		return errorResponse(req.ID, apperr.RPCCode(apperr.InvalidArgument), "one of password or private_key is required")
	}

	hostKeyCB, err := s.hostKeyCB()
	if err != nil {
		return errorResponse(req.ID, apperr.RPCCode(apperr.Internal), "host key policy: "+err.Error())
	}

	auth := sshshell.Auth{Password: p.Password, PrivateKey: p.PrivateKey, Passphrase: p.Passphrase}
	shell, err := sshshell.Connect(ctx, p.Host, p.Port, p.Username, auth, hostKeyCB, 80, 24)
	if err != nil {
		return errorResponse(req.ID, apperr.RPCCode(apperr.KindOf(err)), err.Error())
	}

	// SetSSH closes any prior SSH state before installing the new shell,
	// per the ssh_connect tool contract.
	s.sess.SetSSH(shell)

	return resultResponse(req.ID, sshConnectResult{Status: "ok"})
}

type sshExecuteParams struct {
	Command       string `json:"command"`
	TimeoutSecs   int    `json:"timeout_seconds"`
	WaitForOutput *bool  `json:"wait_for_output"`
}

type sshExecuteResult struct {
	Status string `json:"status"`
	Output string `json:"output,omitempty"`
}

func (s *Service) sshExecute(ctx context.Context, req Request) Response {
	var p sshExecuteParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errorResponse(req.ID, apperr.RPCCode(apperr.InvalidArgument), "invalid params: "+err.Error())
	}
	if p.Command == "" {
		return errorResponse(req.ID, apperr.RPCCode(apperr.InvalidArgument), "command must not be empty")
	}

	timeoutSecs := p.TimeoutSecs
	if timeoutSecs == 0 {
		timeoutSecs = defaultTimeoutSeconds
	}
	if timeoutSecs < minTimeoutSeconds {
		timeoutSecs = minTimeoutSeconds
	}
	if timeoutSecs > maxTimeoutSeconds {
		timeoutSecs = maxTimeoutSeconds
	}
	timeout := time.Duration(timeoutSecs) * time.Second

	waitForOutput := true
	if p.WaitForOutput != nil {
		waitForOutput = *p.WaitForOutput
	}

	shell, ok := s.sess.SSH()
	if !ok {
		return errorResponse(req.ID, apperr.RPCCode(apperr.InvalidArgument), "no SSH shell connected on this session")
	}

	approvalWait := timeout
	if approvalWait > maxApprovalWait {
		approvalWait = maxApprovalWait
	}

	id := s.sess.Approval.Request(p.Command)
	decision := s.sess.Approval.Await(id, approvalWait)

	switch decision {
	case approval.Rejected:
		return resultResponse(req.ID, sshExecuteResult{Status: "rejected"})
	case approval.TimedOut:
		return resultResponse(req.ID, sshExecuteResult{Status: "approval_timeout"})
	}

	baseline := s.sess.Output.Tail(0, 0)

	if err := shell.Write([]byte(p.Command + "\n")); err != nil {
		return errorResponse(req.ID, apperr.RPCCode(apperr.KindOf(err)), err.Error())
	}

	if !waitForOutput {
		return resultResponse(req.ID, sshExecuteResult{Status: "ok"})
	}

	sampleWait := timeout
	if sampleWait > maxSampleWait {
		sampleWait = maxSampleWait
	}
	output := deltaSince(baseline, s.sampleOutput(ctx, sampleWait))

	return resultResponse(req.ID, sshExecuteResult{Status: "ok", Output: output})
}

// sampleOutput waits up to d for the Output Buffer's tail to settle (stop
// growing) before returning it, so ssh_execute's result reflects the
// command's output rather than an arbitrary mid-flight snapshot.
//
// Adapted from the deleted internal/wait/wait.go's ForOutput
// settle-or-timeout polling loop: poll on a short tick and give up once
// either the output stops changing for one full tick or the overall
// deadline, fixed when sampling starts, elapses.
func (s *Service) sampleOutput(ctx context.Context, d time.Duration) string {
	const pollInterval = 200 * time.Millisecond

	deadline := time.Now().Add(d)
	last := s.sess.Output.Tail(0, 0)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return last
		case <-ticker.C:
			cur := s.sess.Output.Tail(0, 0)
			if cur == last {
				return cur
			}
			last = cur
			if time.Now().After(deadline) {
				return last
			}
		}
	}
}

// deltaSince returns the portion of cur appended after baseline, so
// ssh_execute reports only this command's output rather than the whole
// settled tail (which would otherwise repeat prior commands' output still
// resident in the buffer). If the buffer evicted baseline's bytes in the
// meantime (cur no longer starts with baseline), there is nothing to trim
// against, so the full settled tail is returned as a fallback.
func deltaSince(baseline, cur string) string {
	if !strings.HasPrefix(cur, baseline) {
		return cur
	}
	return strings.TrimPrefix(cur[len(baseline):], "\n")
}

type sshReadOutputParams struct {
	Lines     int  `json:"lines"`
	AIContext bool `json:"ai_context"`
}

type sshReadOutputResult struct {
	Status string `json:"status"`
	Output string `json:"output"`
}

// sshReadOutput serves the plain human/browser tail by default. When the
// caller identifies itself as the embedded AI CLI via ai_context, it instead
// returns the AI-context rolling window verbatim (no re-stripping — it is
// already ANSI-stripped on append), joined with newlines, per §10.3's
// ai_context supplement. The
// two are independent views over the same appended bytes: this tool has no
// other way to distinguish the AI CLI from any other JSON-RPC caller on the
// same session, so the caller declares which view it wants.
func (s *Service) sshReadOutput(req Request) Response {
	var p sshReadOutputParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errorResponse(req.ID, apperr.RPCCode(apperr.InvalidArgument), "invalid params: "+err.Error())
		}
	}

	if p.AIContext {
		out := strings.Join(s.sess.Output.AIContext(), "\n")
		return resultResponse(req.ID, sshReadOutputResult{Status: "ok", Output: out})
	}

	lines := p.Lines
	if lines == 0 {
		lines = defaultReadLines
	}
	if lines < minReadLines {
		lines = minReadLines
	}
	if lines > maxReadLines {
		lines = maxReadLines
	}

	out := s.sess.Output.Tail(lines, 0)
	return resultResponse(req.ID, sshReadOutputResult{Status: "ok", Output: out})
}
