package outbuf

import "sync"

// aiContext is a capped rolling window of output chunks, supplementing the
// user-facing Output Buffer per SPEC_FULL.md §10.3. Grounded on the
// distilled source's state.rs Session.add_terminal_output, which pushed
// every chunk into both terminal_output_history and a gemini_context
// capped at the last 100 entries.
type aiContext struct {
	mu       sync.Mutex
	entries  []string
	capacity int
}

func newAIContext(capacity int) *aiContext {
	if capacity <= 0 {
		capacity = 100
	}
	return &aiContext{capacity: capacity}
}

func (c *aiContext) append(chunk string) {
	if chunk == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, chunk)
	if excess := len(c.entries) - c.capacity; excess > 0 {
		c.entries = c.entries[excess:]
	}
}

func (c *aiContext) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.entries))
	copy(out, c.entries)
	return out
}
