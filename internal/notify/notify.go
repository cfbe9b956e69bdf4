// Package notify is the async delivery pipeline in front of the chat
// adapter: bounded queue, worker pool, rate limit, one retry. Reminder
// callbacks enqueue here so a slow Telegram call can never stall the
// trigger dispatch loop.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"lessonbot/internal/eventbus"
	"lessonbot/internal/transport"
	"lessonbot/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notify queue full")
	ErrStopped   = errors.New("notifier not running")
)

type Config struct {
	Workers    int
	QueueSize  int
	RatePerSec int
	RetryMax   int
}

type item struct {
	target transport.ChatTarget
	text   string
}

// Service is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter transport.Adapter
	bus     eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	queue     chan item
	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

func New(cfg Config, adapter transport.Adapter, log logx.Logger, bus eventbus.Bus) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	return &Service{
		log:     log,
		adapter: adapter,
		bus:     bus,
		cfg:     cfg,
		// Burst equals the per-second rate so short spikes don't stall.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.queue != nil {
		s.mu.Unlock()
		return
	}
	s.queue = make(chan item, s.cfg.QueueSize)
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	rctx, q := s.runCtx, s.queue
	workers := s.cfg.Workers
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		s.workerWG.Add(1)
		go func() {
			defer s.workerWG.Done()
			s.worker(rctx, q)
		}()
	}
	s.log.Info("notifier started", logx.Int("workers", workers), logx.Int("rate_per_sec", s.cfg.RatePerSec))
}

// Stop cancels the workers; queued items past the deadline are dropped.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	cancel := s.runCancel
	s.queue = nil
	s.runCancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("notifier stopped")
	case <-ctx.Done():
		s.log.Warn("notifier workers still draining at shutdown deadline")
	}
}

// Send enqueues a message for delivery. It never blocks: a full queue
// returns ErrQueueFull and the message is dropped.
func (s *Service) Send(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		return ErrStopped
	}

	select {
	case q <- item{target: transport.ChatTarget{ChatID: chatID}, text: text}:
		return nil
	default:
		s.log.Warn("notify queue full, dropping message", logx.Int64("chat", chatID))
		return ErrQueueFull
	}
}

func (s *Service) worker(ctx context.Context, q chan item) {
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-q:
			s.deliver(ctx, it)
		}
	}
}

func (s *Service) deliver(ctx context.Context, it item) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	var err error
	for attempt := 0; attempt <= s.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
		}
		_, err = s.adapter.SendText(ctx, it.target, it.text, nil)
		if err == nil {
			if s.bus != nil {
				s.bus.Publish(eventbus.Event{Type: eventbus.TypeDelivered, Data: it.target.ChatID})
			}
			return
		}
	}

	s.log.Warn("delivery failed", logx.Int64("chat", it.target.ChatID), logx.Err(err))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeDeliveryFailed, Data: err.Error()})
	}
}
