package approval

import (
	"testing"
	"time"

	"github.com/schovi/shellcopilot/internal/apperr"
)

func TestApproveFlow(t *testing.T) {
	c := New()
	sub := c.Subscribe()
	defer c.Unsubscribe(sub)

	id := c.Request("echo hi")

	select {
	case ev := <-sub.Events:
		if ev.Kind != EventCommandRequested || ev.ApprovalID != id || ev.Command != "echo hi" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for command_requested event")
	}

	done := make(chan Decision, 1)
	go func() { done <- c.Await(id, time.Second) }()

	if err := c.Decide(id, true); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if got := <-done; got != Approved {
		t.Fatalf("Await() = %v, want Approved", got)
	}
}

func TestDecideTwiceReportsAlreadyDecided(t *testing.T) {
	c := New()
	id := c.Request("ls")

	if err := c.Decide(id, true); err != nil {
		t.Fatalf("first Decide: %v", err)
	}
	err := c.Decide(id, false)
	if err == nil {
		t.Fatal("second Decide: want error, got nil")
	}
	if apperr.KindOf(err) != apperr.ApprovalAlreadyDecided {
		t.Fatalf("second Decide error = %v, want ApprovalAlreadyDecided", err)
	}
}

func TestDecideUnknownID(t *testing.T) {
	c := New()
	err := c.Decide([16]byte{}, true)
	if err == nil {
		t.Fatal("Decide(unknown): want error, got nil")
	}
}

func TestAwaitTimesOutThenDecideIsUnknown(t *testing.T) {
	c := New()
	id := c.Request("sleep 100")

	got := c.Await(id, 10*time.Millisecond)
	if got != TimedOut {
		t.Fatalf("Await() = %v, want TimedOut", got)
	}

	err := c.Decide(id, true)
	if err == nil {
		t.Fatal("Decide after timeout: want error, got nil")
	}
}

func TestLateSubscriberSeesOutstandingSetInOrder(t *testing.T) {
	c := New()
	id1 := c.Request("first")
	id2 := c.Request("second")

	sub := c.Subscribe()
	defer c.Unsubscribe(sub)

	first := <-sub.Events
	second := <-sub.Events

	if first.ApprovalID != id1 || second.ApprovalID != id2 {
		t.Fatalf("got order %v, %v; want %v, %v", first.ApprovalID, second.ApprovalID, id1, id2)
	}

	select {
	case ev := <-sub.Events:
		t.Fatalf("unexpected third event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
