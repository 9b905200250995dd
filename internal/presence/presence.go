// Package presence drives the floating character: whether it is shown and
// the periodic eye blink.
package presence

import (
	"sync"
	"time"

	"github.com/Zachkp/portfolio/internal/schedule"
)

const (
	DefaultInterval = 3000 * time.Millisecond
	DefaultPulse    = 200 * time.Millisecond
)

type State struct {
	Visible  bool `json:"visible"`
	Blinking bool `json:"blinking"`
}

type Options struct {
	Scheduler schedule.Scheduler
	Interval  time.Duration
	Pulse     time.Duration

	// OnChange is called outside the controller lock whenever State changes.
	OnChange func(State)
}

type Controller struct {
	tasks    *schedule.Group
	interval time.Duration
	pulse    time.Duration
	onChange func(State)

	mu      sync.Mutex
	state   State
	started bool
	stopped bool
}

func New(opts Options) *Controller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Pulse <= 0 {
		opts.Pulse = DefaultPulse
	}
	return &Controller{
		tasks:    schedule.NewGroup(opts.Scheduler),
		interval: opts.Interval,
		pulse:    opts.Pulse,
		onChange: opts.OnChange,
		state:    State{Visible: true},
	}
}

// Start begins the blink cycle. Calling it again has no effect.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.stopped {
		return
	}
	c.started = true
	c.tasks.AfterFunc(c.interval, c.blink)
}

func (c *Controller) blink() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.state.Blinking = true
	st := c.state
	c.tasks.AfterFunc(c.pulse, c.unblink)
	c.tasks.AfterFunc(c.interval, c.blink)
	c.mu.Unlock()

	c.notify(st)
}

func (c *Controller) unblink() {
	c.mu.Lock()
	if c.stopped || !c.state.Blinking {
		c.mu.Unlock()
		return
	}
	c.state.Blinking = false
	st := c.state
	c.mu.Unlock()

	c.notify(st)
}

func (c *Controller) Show() { c.setVisible(true) }
func (c *Controller) Hide() { c.setVisible(false) }

func (c *Controller) setVisible(v bool) {
	c.mu.Lock()
	if c.stopped || c.state.Visible == v {
		c.mu.Unlock()
		return
	}
	c.state.Visible = v
	st := c.state
	c.mu.Unlock()

	c.notify(st)
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stop cancels the repeating pulse and any pending blink-off.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.state.Blinking = false
	c.mu.Unlock()
	c.tasks.Stop()
}

func (c *Controller) notify(st State) {
	if c.onChange != nil {
		c.onChange(st)
	}
}
