package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"lessonbot/pkg/logx"
)

const sampleYAML = `telegram:
  token: "123:abc"
  poll_timeout: "10s"
logging:
  level: debug
  console: true
reminder:
  lead_minutes: 20
  timezone: Europe/Kyiv
timetable:
  - weekday: Monday
    time: "08:15"
    subject: "Програмування"
    room: "313"
  - weekday: Wednesday
    time: "12:15"
    subject: "Веб-технології"
    room: "356"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestManager(t *testing.T, content string) *Manager {
	t.Helper()
	m := NewManager(writeConfig(t, content))
	m.SetLogger(logx.Nop())
	return m
}

func TestLoadDecodesYAML(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, sampleYAML)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Reminder.LeadMinutes != 20 || cfg.Reminder.Timezone != "Europe/Kyiv" {
		t.Fatalf("reminder = %+v", cfg.Reminder)
	}
	if len(cfg.Timetable) != 2 {
		t.Fatalf("timetable has %d entries, want 2", len(cfg.Timetable))
	}
	e := cfg.Timetable[0]
	if e.Weekday != "Monday" || e.Time != "08:15" || e.Subject != "Програмування" || e.Room != "313" {
		t.Fatalf("entry = %+v", e)
	}
	if m.Get() != cfg {
		t.Fatal("Get does not return the committed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, sampleYAML+"mystery_knob: true\n")
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, "telegram: [unclosed")
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected malformed YAML to be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	m.SetLogger(logx.Nop())
	if _, err := m.Load(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load = %v, want os.ErrNotExist", err)
	}
}

func TestReloadPublishesToSubscribers(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, sampleYAML)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	if err := os.WriteFile(m.path, []byte(sampleYAML+"notify:\n  workers: 4\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	m.reload(context.Background())

	select {
	case cfg := <-ch:
		if cfg.Notify.Workers != 4 {
			t.Fatalf("published notify.workers = %d, want 4", cfg.Notify.Workers)
		}
	default:
		t.Fatal("no config published after reload")
	}
}

func TestReloadSkipsUnchangedContent(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, sampleYAML)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	m.reload(context.Background())
	select {
	case <-ch:
		t.Fatal("unchanged content was published")
	default:
	}
}

func TestReloadKeepsConfigWhenValidatorRejects(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, sampleYAML)
	old, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		return errors.New("bad lead time")
	})

	if err := os.WriteFile(m.path, []byte(sampleYAML+"notify:\n  workers: 9\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	m.reload(context.Background())

	if got := m.Get(); got != old {
		t.Fatal("rejected config reached consumers")
	}
}
