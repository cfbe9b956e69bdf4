package trigger

import (
	"context"
	"errors"
	"testing"
	"time"

	"lessonbot/pkg/logx"
)

func newTestRegistry() *Registry {
	return New(Config{Workers: 1, QueueSize: 4}, logx.Nop(), nil)
}

func TestRegisterListCancel(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()

	p := Payload{SubscriberID: 7, Subject: "Math", Room: "101"}
	if err := r.Register("b", time.Monday, 8, 0, p, nil); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := r.Register("a", time.Friday, 7, 15, p, nil); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	got := r.List()
	if len(got) != 2 {
		t.Fatalf("List() len = %d, want 2", len(got))
	}
	// sorted by identifier
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("List() order = [%s %s], want [a b]", got[0].ID, got[1].ID)
	}
	if got[1].Weekday != time.Monday || got[1].Hour != 8 || got[1].Minute != 0 {
		t.Fatalf("unexpected slot: %+v", got[1])
	}
	if got[1].Payload != p {
		t.Fatalf("payload = %+v, want %+v", got[1].Payload, p)
	}

	r.Cancel("b")
	if got := r.List(); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("after Cancel, List() = %+v", got)
	}
}

func TestRegisterDuplicateIdentifier(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()
	if err := r.Register("x", time.Monday, 8, 0, Payload{}, nil); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	err := r.Register("x", time.Tuesday, 9, 0, Payload{}, nil)
	if !errors.Is(err, ErrDuplicateIdentifier) {
		t.Fatalf("second Register = %v, want ErrDuplicateIdentifier", err)
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()
	if err := r.Register("", time.Monday, 8, 0, Payload{}, nil); err == nil {
		t.Fatal("empty identifier should be rejected")
	}
	if err := r.Register("y", time.Monday, 24, 0, Payload{}, nil); err == nil {
		t.Fatal("hour 24 should be rejected")
	}
}

func TestCancelAbsentIsNoop(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()
	r.Cancel("never-registered")
	if got := r.List(); len(got) != 0 {
		t.Fatalf("List() = %+v, want empty", got)
	}
}

func TestStartAttachesEarlyRegistrations(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()
	if err := r.Register("pre", time.Wednesday, 12, 0, Payload{}, nil); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	// Registering while running must work too.
	if err := r.Register("post", time.Thursday, 13, 35, Payload{}, nil); err != nil {
		t.Fatalf("Register while running: %v", err)
	}
	if got := r.List(); len(got) != 2 {
		t.Fatalf("List() len = %d, want 2", len(got))
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	r.Stop(stopCtx)

	// Triggers survive a stop and are listed afterwards.
	if got := r.List(); len(got) != 2 {
		t.Fatalf("List() after Stop len = %d, want 2", len(got))
	}
}
