// Package chat implements the assistant's conversation state machine: an
// append-only transcript, the pending input box and delayed canned replies.
package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/Zachkp/portfolio/internal/schedule"
)

// DefaultReplyDelay is how long the assistant "types" before answering.
const DefaultReplyDelay = 1000 * time.Millisecond

// Message is one transcript entry. Values are never modified after they are
// appended.
type Message struct {
	Text  string `json:"text"`
	IsBot bool   `json:"isBot"`
}

type State int

const (
	StateClosed State = iota
	StateOpenEmpty
	StateOpenActive
)

func (s State) String() string {
	switch s {
	case StateOpenEmpty:
		return "open-empty"
	case StateOpenActive:
		return "open-active"
	default:
		return "closed"
	}
}

// Options configures a Conversation. Zero values pick the defaults.
type Options struct {
	Scheduler  schedule.Scheduler
	Responder  *Responder
	ReplyDelay time.Duration

	// OnMessage is called after each append, outside the conversation lock.
	OnMessage func(Message)
	// OnReply is called after a bot reply is appended with the rule index
	// that produced it (-1 for the fallback).
	OnReply func(rule int)
}

type pendingReply struct {
	seq  uint64
	text string
}

// Conversation owns the open flag, transcript and pending input of one chat
// panel.
type Conversation struct {
	tasks     *schedule.Group
	responder *Responder
	delay     time.Duration
	onMessage func(Message)
	onReply   func(int)

	mu         sync.Mutex
	open       bool
	transcript []Message
	input      string
	pending    []pendingReply
	seq        uint64
	torn       bool
}

func NewConversation(opts Options) *Conversation {
	if opts.Responder == nil {
		opts.Responder = DefaultResponder()
	}
	if opts.ReplyDelay <= 0 {
		opts.ReplyDelay = DefaultReplyDelay
	}
	return &Conversation{
		tasks:     schedule.NewGroup(opts.Scheduler),
		responder: opts.Responder,
		delay:     opts.ReplyDelay,
		onMessage: opts.OnMessage,
		onReply:   opts.OnReply,
	}
}

// Open shows the panel. The greeting is seeded only when the transcript is
// empty, so reopening shows the earlier history. It returns false once the
// conversation has been torn down.
func (c *Conversation) Open() bool {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return false
	}
	c.open = true
	var seeded *Message
	if len(c.transcript) == 0 {
		m := Message{Text: Greeting, IsBot: true}
		c.transcript = append(c.transcript, m)
		seeded = &m
	}
	c.mu.Unlock()

	if seeded != nil {
		c.notify(*seeded)
	}
	return true
}

// Close hides the panel. The transcript and any in-flight replies are kept.
func (c *Conversation) Close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.torn {
		return false
	}
	c.open = false
	return true
}

func (c *Conversation) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.torn {
		return
	}
	c.input = text
}

func (c *Conversation) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Submit commits the pending input as a user message and schedules the bot
// reply. Whitespace-only input, a closed panel or a torn-down conversation
// leave everything untouched and return false.
func (c *Conversation) Submit() bool {
	c.mu.Lock()
	if c.torn || !c.open || strings.TrimSpace(c.input) == "" {
		c.mu.Unlock()
		return false
	}

	text := c.input
	msg := Message{Text: text, IsBot: false}
	c.transcript = append(c.transcript, msg)
	c.input = ""

	seq := c.seq
	c.seq++
	c.pending = append(c.pending, pendingReply{seq: seq, text: text})
	c.tasks.AfterFunc(c.delay, func() { c.deliver(seq) })
	c.mu.Unlock()

	c.notify(msg)
	return true
}

// deliver appends the reply for seq together with any earlier replies still
// outstanding, so answers always land in submission order. The timers of
// those earlier replies find nothing left to do when they fire.
func (c *Conversation) deliver(seq uint64) {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return
	}
	idx := -1
	for i, p := range c.pending {
		if p.seq == seq {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}

	due := c.pending[:idx+1]
	c.pending = append([]pendingReply(nil), c.pending[idx+1:]...)

	replies := make([]Message, 0, len(due))
	rules := make([]int, 0, len(due))
	for _, p := range due {
		rule := c.responder.Match(p.text)
		m := Message{Text: c.responder.Reply(p.text), IsBot: true}
		c.transcript = append(c.transcript, m)
		replies = append(replies, m)
		rules = append(rules, rule)
	}
	c.mu.Unlock()

	for i, m := range replies {
		c.notify(m)
		if c.onReply != nil {
			c.onReply(rules[i])
		}
	}
}

func (c *Conversation) notify(m Message) {
	if c.onMessage != nil {
		c.onMessage(m)
	}
}

// Transcript returns a copy of the messages, oldest first.
func (c *Conversation) Transcript() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.transcript))
	copy(out, c.transcript)
	return out
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.transcript)
}

func (c *Conversation) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case !c.open:
		return StateClosed
	case len(c.transcript) == 0:
		return StateOpenEmpty
	default:
		return StateOpenActive
	}
}

// PendingReplies is the number of replies scheduled but not yet appended.
func (c *Conversation) PendingReplies() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Teardown cancels every scheduled reply. The conversation is inert
// afterwards. Safe to call more than once.
func (c *Conversation) Teardown() {
	c.mu.Lock()
	c.torn = true
	c.pending = nil
	c.mu.Unlock()
	c.tasks.Stop()
}

func (c *Conversation) TornDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.torn
}
