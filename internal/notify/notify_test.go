package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lessonbot/internal/transport"
	"lessonbot/pkg/logx"
)

type fakeAdapter struct {
	mu   sync.Mutex
	sent []string

	// failFirst makes the first N SendText calls fail.
	failFirst int
	calls     int
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- transport.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                               { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failFirst {
		return transport.MessageRef{}, errors.New("flood wait")
	}
	f.sent = append(f.sent, text)
	return transport.MessageRef{ChatID: to.ChatID, MessageID: f.calls}, nil
}

func (f *fakeAdapter) EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	return nil
}

func (f *fakeAdapter) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return nil
}

func (f *fakeAdapter) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSendBeforeStart(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &fakeAdapter{}, logx.Nop(), nil)
	if err := s.Send(context.Background(), 1, "hi"); !errors.Is(err, ErrStopped) {
		t.Fatalf("Send before Start = %v, want ErrStopped", err)
	}
}

func TestSendDelivers(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	s := New(Config{Workers: 1, RatePerSec: 100}, ad, logx.Nop(), nil)
	s.Start(context.Background())
	defer s.Stop(context.Background())

	if err := s.Send(context.Background(), 7, "нагадування"); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	waitFor(t, func() bool { return ad.sentCount() == 1 })
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{failFirst: 1}
	s := New(Config{Workers: 1, RatePerSec: 100, RetryMax: 2}, ad, logx.Nop(), nil)
	s.Start(context.Background())
	defer s.Stop(context.Background())

	if err := s.Send(context.Background(), 7, "retry me"); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	waitFor(t, func() bool { return ad.sentCount() == 1 })
}

func TestSendAfterStop(t *testing.T) {
	t.Parallel()
	s := New(Config{Workers: 1}, &fakeAdapter{}, logx.Nop(), nil)
	s.Start(context.Background())
	s.Stop(context.Background())
	if err := s.Send(context.Background(), 1, "late"); !errors.Is(err, ErrStopped) {
		t.Fatalf("Send after Stop = %v, want ErrStopped", err)
	}
}

func TestSendQueueFull(t *testing.T) {
	t.Parallel()
	// Rate 1/s stalls the worker after its first burst token, so a tiny
	// queue fills up under a flood.
	ad := &fakeAdapter{}
	s := New(Config{Workers: 1, QueueSize: 1, RatePerSec: 1}, ad, logx.Nop(), nil)
	s.Start(context.Background())
	defer s.Stop(context.Background())

	sawFull := false
	for i := 0; i < 50; i++ {
		if err := s.Send(context.Background(), 1, "flood"); errors.Is(err, ErrQueueFull) {
			sawFull = true
			break
		}
	}
	if !sawFull {
		t.Fatal("flooding a size-1 queue never returned ErrQueueFull")
	}
}
