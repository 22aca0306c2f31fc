package toolservice

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/schovi/shellcopilot/internal/apperr"
	"github.com/schovi/shellcopilot/internal/session"
)

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	reg := session.NewRegistry(session.Options{OutputBufferCapacity: 4096, AIContextCapacity: 10})
	sess, err := reg.Create("sh", nil)
	if err != nil {
		t.Fatalf("Create session: %v", err)
	}
	t.Cleanup(func() { reg.Shutdown() })
	return sess
}

func insecureHostKey() (ssh.HostKeyCallback, error) {
	return ssh.InsecureIgnoreHostKey(), nil
}

func rpcRequest(t *testing.T, method string, params any) Request {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		raw = b
	}
	return Request{JSONRPC: ProtocolVersion, ID: json.RawMessage(`1`), Method: method, Params: raw}
}

func TestDispatchUnknownMethod(t *testing.T) {
	svc := New(newTestSession(t), insecureHostKey)
	resp := svc.Dispatch(context.Background(), rpcRequest(t, "nonexistent_tool", nil))
	if resp.Error == nil {
		t.Fatal("want error response for unknown method")
	}
}

func TestSSHReadOutputDefaultsAndClamps(t *testing.T) {
	sess := newTestSession(t)
	sess.Output.Append([]byte("line one\nline two\nline three\n"))

	svc := New(sess, insecureHostKey)
	resp := svc.Dispatch(context.Background(), rpcRequest(t, "ssh_read_output", nil))
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	var result sshReadOutputResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !strings.Contains(result.Output, "line three") {
		t.Fatalf("output = %q, want it to contain last line", result.Output)
	}

	resp = svc.Dispatch(context.Background(), rpcRequest(t, "ssh_read_output", map[string]int{"lines": 10000}))
	if resp.Error != nil {
		t.Fatalf("unexpected error with oversized lines: %+v", resp.Error)
	}
}

func TestSSHExecuteWithoutSSHReturnsInvalidArgument(t *testing.T) {
	svc := New(newTestSession(t), insecureHostKey)
	resp := svc.Dispatch(context.Background(), rpcRequest(t, "ssh_execute", map[string]string{"command": "echo hi"}))
	if resp.Error == nil {
		t.Fatal("want error when no SSH shell is connected")
	}
	if resp.Error.Code != apperr.RPCCode(apperr.InvalidArgument) {
		t.Fatalf("Error.Code = %d, want %d", resp.Error.Code, apperr.RPCCode(apperr.InvalidArgument))
	}
}

func TestSSHExecuteEmptyCommandIsInvalidArgument(t *testing.T) {
	svc := New(newTestSession(t), insecureHostKey)
	resp := svc.Dispatch(context.Background(), rpcRequest(t, "ssh_execute", map[string]string{"command": ""}))
	if resp.Error == nil {
		t.Fatal("want error for empty command")
	}
}

func TestSSHConnectValidatesPort(t *testing.T) {
	svc := New(newTestSession(t), insecureHostKey)
	resp := svc.Dispatch(context.Background(), rpcRequest(t, "ssh_connect", map[string]any{
		"host": "localhost", "port": 70000, "username": "u", "password": "p",
	}))
	if resp.Error == nil {
		t.Fatal("want error for out-of-range port")
	}
}

func TestSSHConnectRequiresCredential(t *testing.T) {
	svc := New(newTestSession(t), insecureHostKey)
	resp := svc.Dispatch(context.Background(), rpcRequest(t, "ssh_connect", map[string]any{
		"host": "localhost", "username": "u",
	}))
	if resp.Error == nil {
		t.Fatal("want error when neither password nor private_key is supplied")
	}
}

// startEchoSSHServer mirrors internal/sshshell's test fixture: a minimal
// in-process SSH server that accepts a shell request and echoes whatever
// it receives back to the client.
func startEchoSSHServer(t *testing.T, user, password string) (host string, port int, stop func()) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == user && string(pass) == password {
				return nil, nil
			}
			return nil, errors.New("ssh: auth error")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go handleEchoConn(nc, cfg)
		}
	}()
	go func() { <-done }()

	h, p, _ := net.SplitHostPort(ln.Addr().String())
	portNum := 0
	for _, r := range p {
		portNum = portNum*10 + int(r-'0')
	}

	return h, portNum, func() {
		close(done)
		ln.Close()
	}
}

func handleEchoConn(nc net.Conn, cfg *ssh.ServerConfig) {
	sc, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		return
	}
	defer sc.Close()
	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go func() {
			for req := range requests {
				switch req.Type {
				case "pty-req", "shell", "window-change":
					if req.WantReply {
						req.Reply(true, nil)
					}
				default:
					if req.WantReply {
						req.Reply(false, nil)
					}
				}
			}
		}()
		go func(ch ssh.Channel) {
			defer ch.Close()
			buf := make([]byte, 1024)
			for {
				n, err := ch.Read(buf)
				if n > 0 {
					ch.Write(buf[:n])
				}
				if err != nil {
					return
				}
			}
		}(ch)
	}
}

func TestSSHConnectThenExecuteRejectedPath(t *testing.T) {
	host, port, stop := startEchoSSHServer(t, "alice", "s3cret")
	defer stop()

	sess := newTestSession(t)
	svc := New(sess, insecureHostKey)

	connectResp := svc.Dispatch(context.Background(), rpcRequest(t, "ssh_connect", map[string]any{
		"host": host, "port": port, "username": "alice", "password": "s3cret",
	}))
	if connectResp.Error != nil {
		t.Fatalf("ssh_connect: %+v", connectResp.Error)
	}

	sub := sess.Approval.Subscribe()
	defer sess.Approval.Unsubscribe(sub)

	type execResult struct {
		resp Response
	}
	done := make(chan execResult, 1)
	go func() {
		resp := svc.Dispatch(context.Background(), rpcRequest(t, "ssh_execute", map[string]any{
			"command": "echo hi", "timeout_seconds": 2,
		}))
		done <- execResult{resp}
	}()

	select {
	case ev := <-sub.Events:
		if err := sess.Approval.Decide(ev.ApprovalID, false); err != nil {
			t.Fatalf("Decide: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for command_requested event")
	}

	select {
	case r := <-done:
		if r.resp.Error != nil {
			t.Fatalf("ssh_execute: %+v", r.resp.Error)
		}
		var result sshExecuteResult
		if err := json.Unmarshal(r.resp.Result, &result); err != nil {
			t.Fatalf("unmarshal result: %v", err)
		}
		if result.Status != "rejected" {
			t.Fatalf("Status = %q, want rejected", result.Status)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for ssh_execute to return")
	}
}
