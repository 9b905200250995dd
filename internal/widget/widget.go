// Package widget ties the character's presence and its chat panel into one
// mounted instance per visitor session.
package widget

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Zachkp/portfolio/internal/chat"
	"github.com/Zachkp/portfolio/internal/presence"
	"github.com/Zachkp/portfolio/internal/schedule"
)

type Activity string

const (
	ActivityMount   Activity = "mount"
	ActivityOpen    Activity = "open"
	ActivityClose   Activity = "close"
	ActivitySubmit  Activity = "submit"
	ActivityReply   Activity = "reply"
	ActivityUnmount Activity = "unmount"
)

// Observer is told about widget activity. rule is only meaningful for
// ActivityReply and is -1 otherwise or for the fallback reply.
type Observer func(id string, a Activity, rule int)

type Widget struct {
	ID      string
	Options Options

	conv     *chat.Conversation
	presence *presence.Controller
	events   *hub
	observe  Observer

	lastSeen atomic.Int64
	once     sync.Once
}

type config struct {
	scheduler     schedule.Scheduler
	responder     *chat.Responder
	replyDelay    time.Duration
	blinkInterval time.Duration
	blinkPulse    time.Duration
	observe       Observer
	now           func() time.Time
}

func newWidget(id string, opts Options, cfg config) *Widget {
	w := &Widget{
		ID:      id,
		Options: opts.normalize(),
		events:  newHub(),
		observe: cfg.observe,
	}
	w.conv = chat.NewConversation(chat.Options{
		Scheduler:  cfg.scheduler,
		Responder:  cfg.responder,
		ReplyDelay: cfg.replyDelay,
		OnMessage: func(m chat.Message) {
			w.events.publish(Event{Kind: EventMessage, Message: &m})
		},
		OnReply: func(rule int) { w.emit(ActivityReply, rule) },
	})
	w.presence = presence.New(presence.Options{
		Scheduler: cfg.scheduler,
		Interval:  cfg.blinkInterval,
		Pulse:     cfg.blinkPulse,
		OnChange: func(s presence.State) {
			w.events.publish(Event{Kind: EventBlink, Presence: &s})
		},
	})
	w.lastSeen.Store(cfg.now().UnixNano())
	w.presence.Start()
	return w
}

func (w *Widget) emit(a Activity, rule int) {
	if w.observe != nil {
		w.observe(w.ID, a, rule)
	}
}

func (w *Widget) touch(now time.Time) {
	w.lastSeen.Store(now.UnixNano())
}

// LastSeen is the time of the last request that resolved to this widget.
func (w *Widget) LastSeen() time.Time {
	return time.Unix(0, w.lastSeen.Load())
}

// Open shows the chat panel in place of the character. A torn-down widget
// ignores it.
func (w *Widget) Open() {
	if !w.conv.Open() {
		return
	}
	w.presence.Hide()
	w.publishState(true)
	w.emit(ActivityOpen, -1)
}

func (w *Widget) Close() {
	if !w.conv.Close() {
		return
	}
	w.presence.Show()
	w.publishState(false)
	w.emit(ActivityClose, -1)
}

func (w *Widget) publishState(open bool) {
	w.events.publish(Event{Kind: EventState, Open: &open})
}

func (w *Widget) SetInput(text string) { w.conv.SetInput(text) }

func (w *Widget) Input() string { return w.conv.Input() }

// Submit commits the pending input. It reports whether a message was sent.
func (w *Widget) Submit() bool {
	if !w.conv.Submit() {
		return false
	}
	w.emit(ActivitySubmit, -1)
	return true
}

func (w *Widget) IsOpen() bool { return w.conv.IsOpen() }

func (w *Widget) Transcript() []chat.Message { return w.conv.Transcript() }

func (w *Widget) Presence() presence.State { return w.presence.Snapshot() }

// Subscribe streams widget events until the returned cancel func is called
// or the widget is torn down, at which point the channel is closed.
func (w *Widget) Subscribe() (<-chan Event, func()) {
	return w.events.subscribe()
}

// Snapshot is a JSON-friendly view of the widget.
type Snapshot struct {
	ID         string         `json:"id"`
	Options    Options        `json:"options"`
	Open       bool           `json:"open"`
	State      string         `json:"state"`
	Input      string         `json:"input"`
	Transcript []chat.Message `json:"transcript"`
	Presence   presence.State `json:"presence"`
	Pending    int            `json:"pendingReplies"`
}

func (w *Widget) Snapshot() Snapshot {
	return Snapshot{
		ID:         w.ID,
		Options:    w.Options,
		Open:       w.conv.IsOpen(),
		State:      w.conv.State().String(),
		Input:      w.conv.Input(),
		Transcript: w.conv.Transcript(),
		Presence:   w.presence.Snapshot(),
		Pending:    w.conv.PendingReplies(),
	}
}

// Teardown releases the blink timer, cancels in-flight replies and closes
// all event streams. Only the first call has any effect.
func (w *Widget) Teardown() {
	w.once.Do(func() {
		w.presence.Stop()
		w.conv.Teardown()
		w.events.close()
		w.emit(ActivityUnmount, -1)
	})
}
