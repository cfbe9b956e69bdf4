// Package timetable holds the static weekly lesson plan and the pure
// helpers the reminder scheduler is built on: validation, clock parsing,
// and lead-time arithmetic.
package timetable

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedEntry = errors.New("timetable entry is missing a required field")
	ErrUnknownWeekday = errors.New("unknown weekday")
	ErrInvalidTime    = errors.New("invalid time of day")
)

// Entry is one weekly lesson slot. Entries are plain data; several entries
// may share the same weekday and time.
type Entry struct {
	Weekday string `json:"weekday"`
	Time    string `json:"time"` // "HH:MM", 24-hour clock
	Subject string `json:"subject"`
	Room    string `json:"room"`
}

// Timetable is an ordered sequence of entries, built once at startup and
// read-only afterwards. Validate must succeed before the timetable is
// handed to the reminder scheduler.
type Timetable struct {
	entries   []Entry
	validated bool
}

func New(entries []Entry) *Timetable {
	cp := append([]Entry(nil), entries...)
	return &Timetable{entries: cp}
}

func (t *Timetable) Entries() []Entry { return t.entries }
func (t *Timetable) Len() int         { return len(t.entries) }

// Validated reports whether Validate has succeeded on this timetable.
func (t *Timetable) Validated() bool { return t.validated }

// Validate checks every entry for structural and semantic correctness.
// It is pure apart from marking the timetable as validated on success.
func (t *Timetable) Validate() error {
	for i, e := range t.entries {
		if err := validateEntry(e); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	t.validated = true
	return nil
}

func validateEntry(e Entry) error {
	if strings.TrimSpace(e.Weekday) == "" || strings.TrimSpace(e.Time) == "" ||
		strings.TrimSpace(e.Subject) == "" || strings.TrimSpace(e.Room) == "" {
		return fmt.Errorf("%w: %+v", ErrMalformedEntry, e)
	}
	if _, err := ParseWeekday(e.Weekday); err != nil {
		return err
	}
	if _, _, err := ParseClock(e.Time); err != nil {
		return err
	}
	return nil
}

// Subjects returns the distinct subjects in the timetable, sorted.
func (t *Timetable) Subjects() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range t.entries {
		if !seen[e.Subject] {
			seen[e.Subject] = true
			out = append(out, e.Subject)
		}
	}
	sort.Strings(out)
	return out
}

var weekdays = map[string]time.Weekday{
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
	"Sunday":    time.Sunday,
}

// ParseWeekday maps an English weekday name to time.Weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdays[strings.TrimSpace(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWeekday, name)
	}
	return wd, nil
}

// ParseClock parses "HH:MM" into an hour/minute pair within valid ranges.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q, expected HH:MM", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("%w: bad hour in %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w: bad minute in %q", ErrInvalidTime, s)
	}
	return h, m, nil
}
