// Package approval implements the per-session Approval Channel: a broadcast
// publisher of command-execution requests backed by an authoritative
// one-shot slot table, so late subscribers replay the outstanding set
// instead of relying on perfect broadcast delivery.
//
// Grounded on other_examples/xuzhougeng-agent-control's SessionHub
// broadcast-with-non-blocking-send idiom and the distilled Rust source's
// ApprovalChannel (broadcast + oneshot-per-id), redesigned per
// SPEC_FULL.md §4.1 into a full per-approval_id slot table supporting any
// number of concurrently outstanding requests (the groundings only ever
// track a single outstanding approval per session).
package approval

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schovi/shellcopilot/internal/apperr"
)

// Decision is the outcome recorded against a slot.
type Decision int

const (
	Approved Decision = iota
	Rejected
	TimedOut
)

// EventKind tags a Event for the Event Gateway's approval stream.
type EventKind string

const (
	EventCommandRequested EventKind = "command_requested"
	EventCommandApproved  EventKind = "command_approved"
	EventCommandRejected  EventKind = "command_rejected"
)

// Event is broadcast to every subscriber whenever a request is posted or
// decided.
type Event struct {
	Kind       EventKind
	ApprovalID uuid.UUID
	Command    string
}

// subscriberBufferSize bounds each subscriber's undelivered-event queue;
// beyond this the oldest undelivered event for that subscriber is dropped,
// per §4.1 ("the authoritative outstanding set is the slot table").
const subscriberBufferSize = 64

// Subscriber is a handle returned by Subscribe. Read from Events until it
// is closed by Unsubscribe.
type Subscriber struct {
	Events chan Event

	ch *Channel
}

type slot struct {
	command     string
	requestedAt time.Time
	decision    chan Decision // buffered 1, filled exactly once
	settled     bool
}

// Channel is the per-session approval fabric described in §4.1.
type Channel struct {
	mu          sync.Mutex
	slots       map[uuid.UUID]*slot
	subscribers map[*Subscriber]struct{}
}

// New builds an empty Channel.
func New() *Channel {
	return &Channel{
		slots:       make(map[uuid.UUID]*slot),
		subscribers: make(map[*Subscriber]struct{}),
	}
}

// Subscribe returns a receiver; the currently-outstanding (not yet decided)
// requests are replayed onto it immediately, in request order, before any
// new events are delivered — satisfying invariant #3 in §8.
func (c *Channel) Subscribe() *Subscriber {
	sub := &Subscriber{Events: make(chan Event, subscriberBufferSize), ch: c}

	c.mu.Lock()
	// Replay the outstanding set into the buffer, then register sub, all
	// under one critical section: broadcast also takes c.mu to snapshot its
	// subscriber list, so it cannot interleave a newer event ahead of this
	// replay.
	for _, ev := range c.outstandingLocked() {
		select {
		case sub.Events <- ev:
		default:
		}
	}
	c.subscribers[sub] = struct{}{}
	c.mu.Unlock()

	return sub
}

// Unsubscribe removes sub and closes its channel. Outstanding slots are
// unaffected.
func (c *Channel) Unsubscribe(sub *Subscriber) {
	c.mu.Lock()
	if _, ok := c.subscribers[sub]; ok {
		delete(c.subscribers, sub)
		close(sub.Events)
	}
	c.mu.Unlock()
}

func (c *Channel) outstandingLocked() []Event {
	type ordered struct {
		id uuid.UUID
		s  *slot
	}
	var all []ordered
	for id, s := range c.slots {
		if !s.settled {
			all = append(all, ordered{id, s})
		}
	}
	// Order by requestedAt to match publish order for a late subscriber.
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].s.requestedAt.Before(all[j-1].s.requestedAt); j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}
	events := make([]Event, 0, len(all))
	for _, o := range all {
		events = append(events, Event{Kind: EventCommandRequested, ApprovalID: o.id, Command: o.s.command})
	}
	return events
}

// Request allocates an approval_id, creates its one-shot slot before
// publishing, and broadcasts the request to all current subscribers.
func (c *Channel) Request(command string) uuid.UUID {
	id := uuid.New()
	s := &slot{command: command, requestedAt: time.Now(), decision: make(chan Decision, 1)}

	c.mu.Lock()
	c.slots[id] = s
	c.mu.Unlock()

	c.broadcast(Event{Kind: EventCommandRequested, ApprovalID: id, Command: command})
	return id
}

// Decide fills the slot for id exactly once. A second decide, or a decide
// for an unknown id, is a non-fatal error that does not mutate any slot.
func (c *Channel) Decide(id uuid.UUID, approved bool) error {
	c.mu.Lock()
	s, ok := c.slots[id]
	if !ok {
		c.mu.Unlock()
		return apperr.New(apperr.UnknownApprovalID, "no such approval id")
	}
	if s.settled {
		c.mu.Unlock()
		return apperr.New(apperr.ApprovalAlreadyDecided, "approval already decided")
	}
	s.settled = true
	c.mu.Unlock()

	decision := Rejected
	kind := EventCommandRejected
	if approved {
		decision = Approved
		kind = EventCommandApproved
	}
	s.decision <- decision
	c.broadcast(Event{Kind: kind, ApprovalID: id})
	return nil
}

// Await blocks until id's slot is decided or timeout elapses. On timeout
// the slot is removed; any subsequent Decide for the same id then reports
// UnknownApprovalID.
func (c *Channel) Await(id uuid.UUID, timeout time.Duration) Decision {
	c.mu.Lock()
	s, ok := c.slots[id]
	c.mu.Unlock()
	if !ok {
		return TimedOut
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d := <-s.decision:
		c.mu.Lock()
		delete(c.slots, id)
		c.mu.Unlock()
		return d
	case <-timer.C:
		c.mu.Lock()
		if cur, ok := c.slots[id]; ok && cur == s && !cur.settled {
			delete(c.slots, id)
		}
		c.mu.Unlock()
		return TimedOut
	}
}

// PendingCount reports the number of outstanding (not-yet-decided) slots,
// used by the diagnostic session-inspection endpoint.
func (c *Channel) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.slots {
		if !s.settled {
			n++
		}
	}
	return n
}

// broadcast fans an event out to every subscriber without blocking the
// publisher; a subscriber whose buffer is full has its oldest undelivered
// event dropped in favor of the new one.
func (c *Channel) broadcast(ev Event) {
	c.mu.Lock()
	subs := make([]*Subscriber, 0, len(c.subscribers))
	for s := range c.subscribers {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.Events <- ev:
		default:
			select {
			case <-sub.Events:
			default:
			}
			select {
			case sub.Events <- ev:
			default:
			}
		}
	}
}
