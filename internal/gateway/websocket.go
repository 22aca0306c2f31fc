package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/schovi/shellcopilot/internal/approval"
	"github.com/schovi/shellcopilot/internal/session"
)

// pingInterval/readDeadline/writeDeadline mirror CLAUDE-PUNK's
// internal/realtime/server.go keepalive cadence.
const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler wires the Event Gateway's streams to a Session Registry.
type Handler struct {
	Registry *session.Registry
	Log      *slog.Logger
}

// NewHandler builds a Handler.
func NewHandler(reg *session.Registry, log *slog.Logger) *Handler {
	return &Handler{Registry: reg, Log: log}
}

// byteStream is the subset of ptysup.Supervisor and sshshell.Shell the
// terminal stream bridges need.
type byteStream interface {
	Subscribe() chan []byte
	Unsubscribe(chan []byte)
	Write(p []byte) error
	Resize(cols, rows int) error
}

func (h *Handler) lookupSession(w http.ResponseWriter, sessionID string) (*session.Session, bool) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return nil, false
	}
	sess, ok := h.Registry.Get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

// AITerminal upgrades the connection and bridges it to the session's PTY
// Supervisor, per §4.6 #1.
func (h *Handler) AITerminal(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, ok := h.lookupSession(w, sessionID)
	if !ok {
		return
	}
	h.bridgeTerminal(w, r, sess, sess.PTY)
}

// SSHTerminal upgrades the connection and bridges it to the session's SSH
// Shell, per §4.6 #2. If ssh_connect has not run yet there is nothing to
// bridge to; the client is expected to retry the upgrade after connecting.
func (h *Handler) SSHTerminal(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, ok := h.lookupSession(w, sessionID)
	if !ok {
		return
	}
	shell, ok := sess.SSH()
	if !ok {
		http.Error(w, "no SSH shell connected on this session", http.StatusConflict)
		return
	}
	h.bridgeTerminal(w, r, sess, shell)
}

func (h *Handler) bridgeTerminal(w http.ResponseWriter, r *http.Request, sess *session.Session, stream byteStream) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.Log != nil {
			h.Log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		}
		return
	}

	sub := stream.Subscribe()
	done := make(chan struct{})

	go terminalWritePump(conn, sub, done)
	terminalReadPump(conn, stream, sess, done)

	stream.Unsubscribe(sub)
	conn.Close()
}

func terminalWritePump(conn *websocket.Conn, sub chan []byte, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case chunk, ok := <-sub:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			frame := TerminalFrame{Kind: FrameOutput, Data: string(chunk)}
			data, _ := json.Marshal(frame)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func terminalReadPump(conn *websocket.Conn, stream byteStream, sess *session.Session, done chan struct{}) {
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sess.Touch()

		var frame TerminalFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		switch frame.Kind {
		case FrameInput:
			stream.Write([]byte(frame.Data))
		case FrameResize:
			stream.Resize(frame.Cols, frame.Rows)
		}
	}
}

// Approvals upgrades the connection and bridges it to the session's
// Approval Channel, per §4.6 #3. On attach, any outstanding requests are
// replayed immediately (approval.Channel.Subscribe's contract).
func (h *Handler) Approvals(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, ok := h.lookupSession(w, sessionID)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.Log != nil {
			h.Log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		}
		return
	}

	sub := sess.Approval.Subscribe()
	done := make(chan struct{})

	go approvalWritePump(conn, sub, done)
	approvalReadPump(conn, sess, done)

	sess.Approval.Unsubscribe(sub)
	conn.Close()
}

func approvalWritePump(conn *websocket.Conn, sub *approval.Subscriber, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, _ := json.Marshal(ApprovalFrame{Kind: FrameKind(ev.Kind), ApprovalID: ev.ApprovalID, Command: ev.Command})
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func approvalReadPump(conn *websocket.Conn, sess *session.Session, done chan struct{}) {
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sess.Touch()

		var frame ApprovalFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame.Kind != FrameCommandDecision {
			continue
		}
		// "the first decision wins" (§4.6 #3): a losing Decide call simply
		// reports ApprovalAlreadyDecided/UnknownApprovalID; the approval
		// stream has no reply channel, so the losing decider is not told.
		_ = sess.Approval.Decide(frame.ApprovalID, frame.Approved)
	}
}
