/*
events.go - Mutation events and the broadcast contract

PURPOSE:
  Every successful mutation is published as an Event so other sessions
  observing the same board can replay it into their own graph and board,
  and so the persistence layer can record an audit trail.

IDEMPOTENT DELIVERY:
  Transports may deliver an event more than once. Replaying a detach of an
  unattached child, or an attach onto the current parent, is a no-op; an
  attach replayed onto a DIFFERENT parent is resolved last-write-wins with
  a surfaced warning (see Session.Apply). The engine specifies only this
  contract, not the transport.

HUB:
  The in-process Hub fans events out to subscribers over buffered
  channels. A slow subscriber drops events rather than blocking the
  mutation path; anyone needing a complete record reads the persisted
  event log instead.

SEE ALSO:
  - session.go:  Emits events and replays them
  - store.go:    AppendEvent / ListEvents persistence
*/
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// EVENT
// =============================================================================

type EventKind string

const (
	EventResourceRegistered EventKind = "resourceRegistered"
	EventJobRegistered      EventKind = "jobRegistered"
	EventDropped            EventKind = "dropped"
	EventAttached           EventKind = "attached"
	EventDetached           EventKind = "detached"
	EventMoved              EventKind = "moved"
	EventRemovedFromBoard   EventKind = "removedFromBoard"
	EventCatalogReplaced    EventKind = "catalogReplaced"
)

// Event records one applied mutation, carrying enough payload for another
// session to replay it. Cell is nil for graph-only mutations and for
// removals from the board; Parent is set for attach/detach.
type Event struct {
	ID           string       `json:"id"`
	Seq          uint64       `json:"seq"`
	Kind         EventKind    `json:"kind"`
	Resource     ResourceID   `json:"resourceId,omitempty"`
	ResourceType ResourceType `json:"resourceType,omitempty"`
	Name         string       `json:"name,omitempty"`
	Parent       ResourceID   `json:"parentId,omitempty"`
	JobType      JobType      `json:"jobType,omitempty"`
	Cell         *Cell        `json:"cell,omitempty"`
	Affected     []ResourceID `json:"affectedResourceIds,omitempty"`
	At           time.Time    `json:"at"`
}

func newEvent(seq uint64, kind EventKind) Event {
	return Event{ID: uuid.NewString(), Seq: seq, Kind: kind, At: time.Now().UTC()}
}

// =============================================================================
// BROADCASTER
// =============================================================================

// Broadcaster receives every successfully applied mutation.
type Broadcaster interface {
	Publish(Event)
}

// NopBroadcaster discards events. Useful for tests and offline tools.
type NopBroadcaster struct{}

func (NopBroadcaster) Publish(Event) {}

// =============================================================================
// HUB - in-process fan-out
// =============================================================================

// Hub is an in-process Broadcaster with multiple subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of future events and a cancel function.
// The channel is buffered; events are dropped for subscribers that fall
// more than bufferSize behind.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	const bufferSize = 64

	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan Event, bufferSize)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish fans the event out without blocking on any subscriber.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default: // subscriber too slow, drop
		}
	}
}
