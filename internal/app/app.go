// Package app wires the bot together: config, logging, the Telegram
// adapter, the trigger registry, the notifier, and the reminder scheduler.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"lessonbot/internal/adapters/telegram"
	"lessonbot/internal/config"
	"lessonbot/internal/eventbus"
	"lessonbot/internal/homework"
	"lessonbot/internal/notify"
	"lessonbot/internal/reminder"
	"lessonbot/internal/timetable"
	"lessonbot/internal/transport"
	"lessonbot/internal/trigger"
	"lessonbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger
	bus  eventbus.Bus

	adapter  transport.Adapter
	registry *trigger.Registry
	notif    *notify.Service
	sched    *reminder.Scheduler
	hw       *homework.Store

	// tt holds the current timetable built from config. May be present but
	// unvalidated when the configured timetable is broken; /start reports
	// that instead of scheduling.
	tt atomic.Pointer[timetable.Timetable]

	updates chan transport.Update

	// per-chat "subject awaiting homework text" conversation state
	pendingMu sync.Mutex
	pending   map[int64]string

	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	pollTimeout, err := parseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()

	registry := trigger.New(trigger.Config{
		Workers:   cfg.Reminder.Workers,
		QueueSize: cfg.Reminder.QueueSize,
		Timezone:  cfg.Reminder.Timezone,
	}, log.With(logx.String("comp", "trigger")), bus)

	notif := notify.New(notify.Config{
		Workers:    cfg.Notify.Workers,
		QueueSize:  cfg.Notify.QueueSize,
		RatePerSec: cfg.Notify.RatePerSec,
		RetryMax:   cfg.Notify.RetryMax,
	}, ad, log.With(logx.String("comp", "notify")), bus)

	sched := reminder.New(registry, notif, cfg.Reminder.LeadMinutes,
		log.With(logx.String("comp", "reminder")), bus)

	a := &App{
		cfgm:     cfgm,
		logs:     logs,
		log:      log,
		bus:      bus,
		adapter:  ad,
		registry: registry,
		notif:    notif,
		sched:    sched,
		hw:       homework.NewStore(),
		updates:  make(chan transport.Update, 256),
		pending:  map[int64]string{},
	}
	a.setTimetable(cfg.Timetable)
	return a, nil
}

// setTimetable builds and validates a timetable from config entries. An
// invalid timetable is still installed (unvalidated) so the conversational
// layer can report the problem instead of scheduling.
func (a *App) setTimetable(entries []timetable.Entry) {
	tt := timetable.New(entries)
	if err := tt.Validate(); err != nil {
		a.log.Error("configured timetable is invalid", logx.Err(err))
	}
	a.tt.Store(tt)
}

func (a *App) currentTimetable() *timetable.Timetable { return a.tt.Load() }

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel

	// Hot reload must never commit a config the services would choke on.
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if _, err := parseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 0); err != nil {
			return err
		}
		if cfg.Reminder.LeadMinutes < 0 {
			return fmt.Errorf("reminder.lead_minutes must be >= 0")
		}
		if tz := cfg.Reminder.Timezone; tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("reminder.timezone: invalid %q: %w", tz, err)
			}
		}
		return timetable.New(cfg.Timetable).Validate()
	})

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}
	a.registry.Start(runCtx)
	a.notif.Start(runCtx)

	a.wg.Add(3)
	go func() {
		defer a.wg.Done()
		a.dispatch(runCtx)
	}()
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()
	go func() {
		defer a.wg.Done()
		a.reloadLoop(runCtx)
	}()

	// Surface service events (trigger firings, delivery outcomes) in one
	// place instead of having every component log its own.
	events, unsub := a.bus.Subscribe(32)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer unsub()
		for {
			select {
			case <-runCtx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				switch e.Type {
				case eventbus.TypeDeliveryFailed, eventbus.TypeTriggerDropped:
					a.log.Warn("service event", logx.String("type", e.Type), logx.Any("data", e.Data))
				default:
					a.log.Debug("service event", logx.String("type", e.Type), logx.Any("data", e.Data))
				}
			}
		}
	}()

	a.log.Info("app started")
	return nil
}

// reloadLoop applies config hot reloads: logging settings always; a changed
// timetable is re-validated and every active subscriber is re-subscribed,
// which leans on Subscribe being idempotent.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})

			// Lead time, timezone and pool sizes take effect on restart.
			a.setTimetable(cfg.Timetable)
			tt := a.currentTimetable()
			if !tt.Validated() {
				continue
			}
			for _, id := range a.sched.Subscribers() {
				if _, err := a.sched.Subscribe(id, tt); err != nil {
					a.log.Error("re-subscribe after reload failed",
						logx.Int64("subscriber", id), logx.Err(err))
				}
			}
			a.log.Info("config reloaded", logx.Int("timetable_entries", tt.Len()))
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.runCancel != nil {
		a.runCancel()
	}

	// Bounded shutdown steps so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
	}

	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("trigger", 2*time.Second, func(c context.Context) error { a.registry.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("background loops still running at shutdown deadline")
	}

	a.log.Info("stopped")
	return a.logs.Close()
}

func parseDurationOrDefault(field, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	return d, nil
}
