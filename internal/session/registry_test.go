package session

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/schovi/shellcopilot/internal/apperr"
)

func newTestRegistry() *Registry {
	return NewRegistry(Options{OutputBufferCapacity: 4096, AIContextCapacity: 10})
}

func TestCreateAndEndRoundTrip(t *testing.T) {
	r := newTestRegistry()
	before := r.Len()

	sess, err := r.Create("sh", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.Len() != before+1 {
		t.Fatalf("Len() = %d, want %d", r.Len(), before+1)
	}

	if err := r.End(sess.ID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if r.Len() != before {
		t.Fatalf("Len() after End = %d, want %d", r.Len(), before)
	}
}

func TestEndTwiceReturnsSessionNotFound(t *testing.T) {
	r := newTestRegistry()
	sess, err := r.Create("sh", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := r.End(sess.ID); err != nil {
		t.Fatalf("first End: %v", err)
	}
	err = r.End(sess.ID)
	if err == nil {
		t.Fatal("second End: want error, got nil")
	}
	if apperr.KindOf(err) != apperr.SessionNotFound {
		t.Fatalf("second End error = %v, want SessionNotFound", err)
	}
}

func TestGetUnknownID(t *testing.T) {
	r := newTestRegistry()
	_, ok := r.Get(uuid.New())
	if ok {
		t.Fatal("Get(unknown): want ok=false")
	}
}

func TestSweepEndsIdleSessions(t *testing.T) {
	r := NewRegistry(Options{OutputBufferCapacity: 4096, AIContextCapacity: 10, IdleTimeout: 20 * time.Millisecond})
	defer r.Shutdown()

	sess, err := r.Create("sh", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := r.Get(sess.ID); !ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("idle session was never swept")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
