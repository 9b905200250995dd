package widget

import (
	"sync"

	"github.com/Zachkp/portfolio/internal/chat"
	"github.com/Zachkp/portfolio/internal/presence"
)

type EventKind string

const (
	EventMessage EventKind = "message"
	EventBlink   EventKind = "blink"
	EventState   EventKind = "state"
)

// Event is pushed to subscribers when the widget changes on its own or in
// response to another request.
type Event struct {
	Kind     EventKind       `json:"kind"`
	Message  *chat.Message   `json:"message,omitempty"`
	Presence *presence.State `json:"presence,omitempty"`
	Open     *bool           `json:"open,omitempty"`
}

const subscriberBuffer = 32

// hub fans events out to subscribers. A subscriber that falls behind misses
// events instead of stalling the timers that produce them.
type hub struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan Event
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

func (h *hub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
