// Package outbuf implements the Output Buffer: a fixed-capacity byte ring
// per SSH shell that provides ANSI-stripped tailed reads for the Tool
// Service and browser consumers.
//
// The eviction arithmetic is grounded on the teacher daemon's
// MemoryStorage overflow handling; the stripping contract is grounded on
// its internal/ansi package, kept in this repo unmodified.
package outbuf

import (
	"strings"
	"sync"

	"github.com/schovi/shellcopilot/internal/ansi"
)

// Buffer is a single-writer / many-reader bounded byte ring. append is
// total-order with respect to tail: a tail never observes a write split
// mid-append, because the whole append happens under the lock.
type Buffer struct {
	mu       sync.Mutex
	data     []byte
	capacity int
	clear    *ansi.ScreenClearDetector
	ctx      *aiContext
}

// New builds a Buffer with the given capacity in bytes and the given
// AI-context rolling-window capacity in entries (SPEC_FULL.md §10.3).
func New(capacityBytes, aiContextEntries int) *Buffer {
	return &Buffer{
		capacity: capacityBytes,
		clear:    ansi.NewScreenClearDetector(),
		ctx:      newAIContext(aiContextEntries),
	}
}

// Append adds bytes to the ring, evicting the oldest bytes on overflow, and
// truncates retained history on a detected full-screen clear the same way
// the teacher daemon does for long-running TUI sessions.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	result := b.clear.Process(p)
	if result.ClearFound {
		b.data = b.data[:0]
	}
	chunk := result.DataAfter

	b.data = append(b.data, chunk...)
	if excess := len(b.data) - b.capacity; excess > 0 {
		b.data = b.data[excess:]
	}

	b.ctx.append(stripForContext(chunk))
}

// Tail returns the last at-most-lines newline-delimited lines, total size at
// most maxBytes, from the most recent end of the stream, with
// carriage-return and ANSI-escape sequences stripped, per §4.2.
func (b *Buffer) Tail(maxLines, maxBytes int) string {
	b.mu.Lock()
	snapshot := make([]byte, len(b.data))
	copy(snapshot, b.data)
	b.mu.Unlock()

	stripped := ansi.Strip(string(snapshot))
	return tailLines(stripped, maxLines, maxBytes)
}

// AIContext returns the capped rolling window of ANSI-stripped output
// chunks kept specifically for the embedded AI CLI's own context, per
// SPEC_FULL.md §10.3 (grounded on the original source's gemini_context).
func (b *Buffer) AIContext() []string {
	return b.ctx.snapshot()
}

func stripForContext(p []byte) string {
	if len(p) == 0 {
		return ""
	}
	return ansi.Strip(string(p))
}

func tailLines(s string, maxLines, maxBytes int) string {
	// A final newline terminates the last line; it does not start a new one.
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	out := strings.Join(lines, "\n")
	if maxBytes > 0 && len(out) > maxBytes {
		out = out[len(out)-maxBytes:]
	}
	return out
}
