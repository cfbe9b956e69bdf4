package timetable

import (
	"errors"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		entry   Entry
		wantErr error
	}{
		{
			name:  "well-formed",
			entry: Entry{Weekday: "Monday", Time: "08:15", Subject: "Програмування", Room: "313"},
		},
		{
			name:    "missing room",
			entry:   Entry{Weekday: "Monday", Time: "08:15", Subject: "Програмування"},
			wantErr: ErrMalformedEntry,
		},
		{
			name:    "missing subject",
			entry:   Entry{Weekday: "Monday", Time: "08:15", Room: "313"},
			wantErr: ErrMalformedEntry,
		},
		{
			name:    "unknown weekday",
			entry:   Entry{Weekday: "Funday", Time: "08:15", Subject: "X", Room: "1"},
			wantErr: ErrUnknownWeekday,
		},
		{
			name:    "out of range time",
			entry:   Entry{Weekday: "Monday", Time: "25:61", Subject: "X", Room: "1"},
			wantErr: ErrInvalidTime,
		},
		{
			name:    "unparseable time",
			entry:   Entry{Weekday: "Monday", Time: "morning", Subject: "X", Room: "1"},
			wantErr: ErrInvalidTime,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tab := New([]Entry{tt.entry})
			err := tab.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				if !tab.Validated() {
					t.Fatal("Validated() = false after successful Validate")
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
			if tab.Validated() {
				t.Fatal("Validated() = true after failed Validate")
			}
		})
	}
}

func TestValidateReportsEntryIndex(t *testing.T) {
	t.Parallel()
	tab := New([]Entry{
		{Weekday: "Monday", Time: "08:15", Subject: "A", Room: "1"},
		{Weekday: "Funday", Time: "08:15", Subject: "B", Room: "2"},
	})
	err := tab.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got == "" || got[:7] != "entry 1" {
		t.Fatalf("error should name the offending entry, got %q", got)
	}
}

func TestParseWeekday(t *testing.T) {
	t.Parallel()
	wd, err := ParseWeekday("Sunday")
	if err != nil {
		t.Fatalf("ParseWeekday error: %v", err)
	}
	if wd != time.Sunday {
		t.Fatalf("ParseWeekday = %v, want Sunday", wd)
	}
	if _, err := ParseWeekday("monday"); !errors.Is(err, ErrUnknownWeekday) {
		t.Fatalf("lowercase weekday should be rejected, got %v", err)
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()
	h, m, err := ParseClock("23:59")
	if err != nil {
		t.Fatalf("ParseClock error: %v", err)
	}
	if h != 23 || m != 59 {
		t.Fatalf("ParseClock = %d:%d", h, m)
	}
	for _, bad := range []string{"24:00", "12:60", "12", "a:b", ""} {
		if _, _, err := ParseClock(bad); !errors.Is(err, ErrInvalidTime) {
			t.Fatalf("ParseClock(%q) = %v, want ErrInvalidTime", bad, err)
		}
	}
}

func TestSubjectsDistinctSorted(t *testing.T) {
	t.Parallel()
	tab := New([]Entry{
		{Weekday: "Monday", Time: "08:15", Subject: "Math", Room: "1"},
		{Weekday: "Tuesday", Time: "08:15", Subject: "Art", Room: "2"},
		{Weekday: "Friday", Time: "08:15", Subject: "Math", Room: "3"},
	})
	got := tab.Subjects()
	want := []string{"Art", "Math"}
	if len(got) != len(want) {
		t.Fatalf("Subjects() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Subjects() = %v, want %v", got, want)
		}
	}
}
