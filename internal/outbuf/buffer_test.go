package outbuf

import (
	"strings"
	"testing"
)

func TestBufferTailReturnsRecentLines(t *testing.T) {
	b := New(1024, 10)
	b.Append([]byte("line1\nline2\nline3\n"))

	got := b.Tail(2, 1024)
	want := "line2\nline3"
	if got != want {
		t.Fatalf("Tail(2,1024) = %q, want %q", got, want)
	}
}

func TestBufferStripsANSI(t *testing.T) {
	b := New(1024, 10)
	b.Append([]byte("\x1b[31mred\x1b[0m\n"))

	got := b.Tail(10, 1024)
	if strings.Contains(got, "\x1b") {
		t.Fatalf("Tail() = %q, want ANSI escapes stripped", got)
	}
	if got != "red" {
		t.Fatalf("Tail() = %q, want %q", got, "red")
	}
}

func TestBufferEvictsOnOverflow(t *testing.T) {
	b := New(8, 10)
	b.Append([]byte("0123456789")) // 10 bytes into an 8-byte capacity

	b.mu.Lock()
	got := len(b.data)
	b.mu.Unlock()

	if got > 8 {
		t.Fatalf("buffer retained %d bytes, want <= 8", got)
	}
}

func TestBufferTruncatesOnScreenClear(t *testing.T) {
	b := New(1024, 10)
	b.Append([]byte("stale output"))
	b.Append([]byte("\x1b[2Jfresh output"))

	b.mu.Lock()
	got := string(b.data)
	b.mu.Unlock()

	if strings.Contains(got, "stale") {
		t.Fatalf("retained data %q still contains pre-clear output", got)
	}
}

func TestAIContextCapsEntries(t *testing.T) {
	b := New(1024, 2)
	b.Append([]byte("a\n"))
	b.Append([]byte("b\n"))
	b.Append([]byte("c\n"))

	ctx := b.AIContext()
	if len(ctx) != 2 {
		t.Fatalf("AIContext() has %d entries, want 2", len(ctx))
	}
	if ctx[0] != "b\n" || ctx[1] != "c\n" {
		t.Fatalf("AIContext() = %v, want the two most recent chunks", ctx)
	}
}
