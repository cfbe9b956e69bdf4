package trigger

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"lessonbot/internal/eventbus"
	"lessonbot/pkg/logx"
)

// Registry stores weekly triggers and fires their callbacks through a
// bounded queue and worker pool. It is safe for concurrent use.
type Registry struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	bus eventbus.Bus
	loc *time.Location

	c    *cron.Cron
	defs map[string]*def

	queue chan firing

	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Registry {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Registry{
		log:  log,
		cfg:  cfg,
		bus:  bus,
		defs: map[string]*def{},
	}
}

func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return
	}

	r.loc = r.loadLocationLocked()
	r.c = cron.New(cron.WithLocation(r.loc))
	r.queue = make(chan firing, r.cfg.QueueSize)
	r.runCtx, r.runCancel = context.WithCancel(ctx)

	// Attach definitions registered before Start.
	for _, d := range r.defs {
		if err := r.attachLocked(d); err != nil {
			r.log.Error("trigger attach failed", logx.String("id", d.id), logx.Err(err))
		}
	}

	for i := 0; i < r.cfg.Workers; i++ {
		i := i
		rctx, q := r.runCtx, r.queue
		r.workerWG.Add(1)
		go func() {
			defer r.workerWG.Done()
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error("panic in trigger worker",
						logx.Int("worker", i),
						logx.Any("panic", rec),
						logx.String("stack", string(debug.Stack())))
				}
			}()
			r.worker(rctx, q)
		}()
	}

	r.c.Start()
	r.log.Info("trigger registry started",
		logx.Int("workers", r.cfg.Workers),
		logx.String("tz", r.loc.String()),
		logx.Int("triggers", len(r.defs)))
}

// Stop halts the cron runner and the workers. Pending queued firings are
// abandoned; triggers stay registered and fire again after the next Start.
func (r *Registry) Stop(ctx context.Context) {
	r.mu.Lock()
	c := r.c
	cancel := r.runCancel
	r.c = nil
	r.runCancel = nil
	r.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		r.log.Warn("trigger registry stop cancelled", logx.Err(ctx.Err()))
	}
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		r.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info("trigger registry stopped")
	case <-ctx.Done():
		r.log.Warn("trigger workers still draining at shutdown deadline")
	}
}

// Register adds a weekly trigger. It fails with ErrDuplicateIdentifier when
// id is already live.
func (r *Registry) Register(id string, weekday time.Weekday, hour, minute int, p Payload, cb Callback) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("trigger id required")
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("trigger %s: time %02d:%02d out of range", id, hour, minute)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentifier, id)
	}

	d := &def{id: id, weekday: weekday, hour: hour, minute: minute, payload: p, cb: cb}
	if r.c != nil {
		if err := r.attachLocked(d); err != nil {
			return err
		}
	}
	r.defs[id] = d
	r.log.Debug("trigger registered",
		logx.String("id", id),
		logx.String("at", fmt.Sprintf("%s %02d:%02d", weekday, hour, minute)))
	return nil
}

// Cancel removes a trigger. Cancelling an absent identifier is a no-op.
func (r *Registry) Cancel(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.defs[id]
	if !ok {
		return
	}
	if r.c != nil && d.entryID != 0 {
		r.c.Remove(d.entryID)
	}
	delete(r.defs, id)
	r.log.Debug("trigger cancelled", logx.String("id", id))
}

// List returns a snapshot of all registered triggers, sorted by identifier.
// It reflects every Register/Cancel that completed before the call.
func (r *Registry) List() []Info {
	r.mu.Lock()
	out := make([]Info, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, Info{
			ID:      d.id,
			Weekday: d.weekday,
			Hour:    d.hour,
			Minute:  d.minute,
			Payload: d.payload,
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// attachLocked wires a definition into the running cron. Call with r.mu held.
func (r *Registry) attachLocked(d *def) error {
	spec := fmt.Sprintf("%d %d * * %d", d.minute, d.hour, int(d.weekday))
	eid, err := r.c.AddFunc(spec, func() {
		r.enqueue(firing{id: d.id, payload: d.payload, cb: d.cb})
	})
	if err != nil {
		return fmt.Errorf("trigger %s: %w", d.id, err)
	}
	d.entryID = eid
	return nil
}

func (r *Registry) enqueue(f firing) {
	r.mu.Lock()
	q := r.queue
	r.mu.Unlock()
	if q == nil {
		return
	}
	select {
	case q <- f:
	default:
		r.log.Warn("trigger queue full, dropping firing", logx.String("id", f.id))
		if r.bus != nil {
			r.bus.Publish(eventbus.Event{Type: eventbus.TypeTriggerDropped, Data: f.id})
		}
	}
}

func (r *Registry) worker(ctx context.Context, q chan firing) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-q:
			r.fire(ctx, f)
		}
	}
}

// fire runs one callback. A panicking or failing callback must never take
// down the dispatch loop that drives the remaining triggers.
func (r *Registry) fire(ctx context.Context, f firing) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in trigger callback",
				logx.String("id", f.id),
				logx.Any("panic", rec),
				logx.String("stack", string(debug.Stack())))
		}
	}()
	if f.cb == nil {
		return
	}
	f.cb(ctx, f.payload)
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: eventbus.TypeTriggerFired, Data: f.id})
	}
}

func (r *Registry) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(r.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		r.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
