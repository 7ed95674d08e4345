package nav

import (
	"sort"
	"sync"
)

// EventKind identifies a navigation lifecycle notification.
type EventKind string

const (
	// EventNavStarted fires after the departing scroll is saved, before
	// the fetch.
	EventNavStarted EventKind = "nav-started"
	// EventNavEnded fires after the render attempt and its side effects.
	// A navigation whose fetch fails never emits it.
	EventNavEnded EventKind = "nav-ended"
	// EventRenderSucceeded fires when the render collaborator accepted
	// the fetched markup.
	EventRenderSucceeded EventKind = "render-succeeded"
	// EventRenderFailed fires when the mount point was absent from the
	// fetched markup; the page and history stack are untouched.
	EventRenderFailed EventKind = "render-failed"
)

// Event is one lifecycle notification. Result is nil on EventNavStarted.
type Event struct {
	Kind    EventKind
	Request *Request
	Result  *Result
}

// Subscription is a handle on a registered event listener.
type Subscription struct {
	id  int
	hub *eventHub
}

// Cancel removes the listener. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.hub.remove(s.id)
}

// eventHub is the subscriber registry. Dispatch is synchronous and in
// subscription order; a slow listener delays the navigation it observes.
type eventHub struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[int]func(Event))}
}

func (h *eventHub) add(fn func(Event)) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.subs[h.next] = fn
	return &Subscription{id: h.next, hub: h}
}

func (h *eventHub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

func (h *eventHub) emit(e Event) {
	h.mu.Lock()
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.subs[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
