package widget

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Zachkp/portfolio/internal/chat"
	"github.com/Zachkp/portfolio/internal/schedule"
)

const DefaultIdleTTL = 30 * time.Minute

type RegistryConfig struct {
	Scheduler     schedule.Scheduler
	Responder     *chat.Responder
	ReplyDelay    time.Duration
	BlinkInterval time.Duration
	BlinkPulse    time.Duration

	// IdleTTL is how long a widget may go without requests before Sweep
	// unmounts it.
	IdleTTL time.Duration

	Observer Observer
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Registry holds the mounted widgets, one per visitor session.
type Registry struct {
	cfg    config
	ttl    time.Duration
	logger zerolog.Logger

	mu      sync.RWMutex
	widgets map[string]*Widget
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Scheduler == nil {
		cfg.Scheduler = schedule.System{}
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		cfg: config{
			scheduler:     cfg.Scheduler,
			responder:     cfg.Responder,
			replyDelay:    cfg.ReplyDelay,
			blinkInterval: cfg.BlinkInterval,
			blinkPulse:    cfg.BlinkPulse,
			observe:       cfg.Observer,
			now:           cfg.Now,
		},
		ttl:     cfg.IdleTTL,
		logger:  cfg.Logger,
		widgets: make(map[string]*Widget),
	}
}

// Mount creates a widget with a fresh random ID.
func (r *Registry) Mount(opts Options) *Widget {
	return r.MountWith(opts, nil)
}

// MountWith is Mount with a hook that sees the new ID before any activity is
// reported for it.
func (r *Registry) MountWith(opts Options, beforeMount func(id string)) *Widget {
	id := uuid.NewString()
	if beforeMount != nil {
		beforeMount(id)
	}
	w := newWidget(id, opts, r.cfg)

	r.mu.Lock()
	r.widgets[w.ID] = w
	r.mu.Unlock()

	w.emit(ActivityMount, -1)
	r.logger.Debug().
		Str("widget", w.ID).
		Str("color", string(w.Options.PrimaryColor)).
		Str("theme", string(w.Options.Theme)).
		Msg("widget mounted")
	return w
}

// Get returns the widget and marks it as recently used.
func (r *Registry) Get(id string) (*Widget, bool) {
	r.mu.RLock()
	w, ok := r.widgets[id]
	r.mu.RUnlock()
	if ok {
		w.touch(r.cfg.now())
	}
	return w, ok
}

// Unmount tears the widget down. It reports whether the ID was known.
func (r *Registry) Unmount(id string) bool {
	r.mu.Lock()
	w, ok := r.widgets[id]
	delete(r.widgets, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	w.Teardown()
	r.logger.Debug().Str("widget", id).Msg("widget unmounted")
	return true
}

// Sweep unmounts widgets idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep(now time.Time) int {
	var idle []*Widget
	r.mu.Lock()
	for id, w := range r.widgets {
		if now.Sub(w.LastSeen()) > r.ttl {
			idle = append(idle, w)
			delete(r.widgets, id)
		}
	}
	r.mu.Unlock()

	for _, w := range idle {
		w.Teardown()
	}
	if len(idle) > 0 {
		r.logger.Info().Int("count", len(idle)).Msg("evicted idle widgets")
	}
	return len(idle)
}

// Run sweeps periodically until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	interval := r.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.cfg.now())
		}
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.widgets)
}

// Close unmounts every widget.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.widgets
	r.widgets = make(map[string]*Widget)
	r.mu.Unlock()

	for _, w := range all {
		w.Teardown()
	}
}
