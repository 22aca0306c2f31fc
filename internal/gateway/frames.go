// Package gateway implements the Event Gateway: three per-session
// full-duplex WebSocket streams (AI-terminal, SSH-terminal, approval
// commands) plus one SSE stream, per SPEC_FULL.md §4.6.
//
// Grounded on chemistrywow31-CLAUDE-PUNK's internal/realtime/server.go
// (WebSocket upgrade, ping/pong read/write pumps, non-blocking per-client
// fan-out) and internal/protocol/message.go's tagged-envelope idiom,
// generalized here from that repo's single multiplexed socket into three
// stream-specific socket kinds with their own frame schemas.
package gateway

import "github.com/google/uuid"

// FrameKind tags every frame exchanged on a stream.
type FrameKind string

const (
	FrameInput           FrameKind = "input"
	FrameResize          FrameKind = "resize"
	FrameOutput          FrameKind = "output"
	FrameError           FrameKind = "error"
	FrameCommandRequested FrameKind = "command_requested"
	FrameCommandApproved  FrameKind = "command_approved"
	FrameCommandRejected  FrameKind = "command_rejected"
	FrameCommandDecision  FrameKind = "command_decision"
)

// TerminalFrame is the schema shared by the AI-terminal and SSH-terminal
// streams (§4.6 #1, #2). Only the fields relevant to Kind are populated.
type TerminalFrame struct {
	Kind    FrameKind `json:"kind"`
	Data    string    `json:"data,omitempty"`
	Cols    int       `json:"cols,omitempty"`
	Rows    int       `json:"rows,omitempty"`
	Message string    `json:"message,omitempty"`
}

// ApprovalFrame is the schema shared by the approval WebSocket stream and
// the SSE stream (§4.6 #3, #4).
type ApprovalFrame struct {
	Kind       FrameKind `json:"kind"`
	ApprovalID uuid.UUID `json:"approval_id,omitempty"`
	Command    string    `json:"command,omitempty"`
	Approved   bool      `json:"approved,omitempty"`
}
