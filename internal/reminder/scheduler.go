// Package reminder converts a validated weekly timetable into a set of
// named, cancelable triggers per subscriber and renders the reminder
// message when one fires.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"lessonbot/internal/eventbus"
	"lessonbot/internal/timetable"
	"lessonbot/internal/trigger"
	"lessonbot/pkg/logx"
)

var ErrUnvalidatedTimetable = errors.New("timetable has not been validated")

const idPrefix = "reminder/"

// Substrate is the weekly-recurrence timer facility the scheduler
// registers triggers against. Its listing is the single source of truth
// for what is currently registered; the scheduler keeps no registration
// state of its own.
type Substrate interface {
	Register(id string, weekday time.Weekday, hour, minute int, p trigger.Payload, cb trigger.Callback) error
	List() []trigger.Info
	Cancel(id string)
}

// Sink delivers a rendered reminder to a subscriber's chat. Send is
// expected to be a fast, non-blocking dispatch (enqueue), not a network
// round trip.
type Sink interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Scheduler is the recurring-trigger scheduling engine. Subscribe is
// idempotent per subscriber and all-or-nothing; Unsubscribe removes exactly
// the subscriber's own triggers. Operations on different subscribers are
// independent; operations on the same subscriber are serialized.
type Scheduler struct {
	log  logx.Logger
	sub  Substrate
	sink Sink
	bus  eventbus.Bus

	lead int // minutes before the lesson the reminder fires

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New(sub Substrate, sink Sink, leadMinutes int, log logx.Logger, bus eventbus.Bus) *Scheduler {
	if leadMinutes <= 0 {
		leadMinutes = 15
	}
	return &Scheduler{
		log:   log,
		sub:   sub,
		sink:  sink,
		bus:   bus,
		lead:  leadMinutes,
		locks: map[int64]*sync.Mutex{},
	}
}

func (s *Scheduler) LeadMinutes() int { return s.lead }

// Subscribe registers one weekly trigger per timetable entry for the given
// subscriber, replacing any triggers it already has. The timetable must have
// passed Validate. On any substrate error every trigger registered by this
// call is rolled back before the error is returned, so the subscriber ends
// up either fully scheduled or not scheduled at all. Returns the number of
// triggers registered.
func (s *Scheduler) Subscribe(subscriberID int64, tt *timetable.Timetable) (int, error) {
	if tt == nil || !tt.Validated() {
		return 0, ErrUnvalidatedTimetable
	}

	mu := s.lockFor(subscriberID)
	mu.Lock()
	defer mu.Unlock()

	// Idempotent re-registration: clear whatever is there first.
	removed := s.cancelAllLocked(subscriberID)
	if removed > 0 {
		s.log.Debug("replacing existing triggers",
			logx.Int64("subscriber", subscriberID), logx.Int("removed", removed))
	}

	for i, e := range tt.Entries() {
		// Validate() guarantees these parse.
		wd, err := timetable.ParseWeekday(e.Weekday)
		if err != nil {
			s.cancelAllLocked(subscriberID)
			return 0, err
		}
		h, m, err := timetable.ParseClock(e.Time)
		if err != nil {
			s.cancelAllLocked(subscriberID)
			return 0, err
		}

		th, tm, shift := timetable.LeadTime(h, m, s.lead)
		twd := timetable.ShiftWeekday(wd, shift)

		id := triggerID(subscriberID, twd, i)
		p := trigger.Payload{SubscriberID: subscriberID, Subject: e.Subject, Room: e.Room}
		if err := s.sub.Register(id, twd, th, tm, p, s.onTrigger); err != nil {
			s.cancelAllLocked(subscriberID)
			return 0, fmt.Errorf("register trigger %s: %w", id, err)
		}
	}

	n := tt.Len()
	s.log.Info("subscriber scheduled",
		logx.Int64("subscriber", subscriberID),
		logx.Int("triggers", n),
		logx.Int("lead_minutes", s.lead))
	return n, nil
}

// Unsubscribe cancels every trigger belonging to the subscriber. It is a
// no-op success when none exist. Returns the number of triggers cancelled.
func (s *Scheduler) Unsubscribe(subscriberID int64) (int, error) {
	mu := s.lockFor(subscriberID)
	mu.Lock()
	defer mu.Unlock()

	n := s.cancelAllLocked(subscriberID)
	if n > 0 {
		s.log.Info("subscriber unscheduled",
			logx.Int64("subscriber", subscriberID), logx.Int("triggers", n))
	}
	return n, nil
}

// Subscribers lists the subscriber identities that currently own at least
// one trigger, derived from the substrate listing.
func (s *Scheduler) Subscribers() []int64 {
	seen := map[int64]bool{}
	var out []int64
	for _, info := range s.sub.List() {
		id, ok := ownerOf(info.ID)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// cancelAllLocked cancels every trigger prefixed with the subscriber's
// identity. Call with the subscriber's lock held.
func (s *Scheduler) cancelAllLocked(subscriberID int64) int {
	prefix := subscriberPrefix(subscriberID)
	n := 0
	for _, info := range s.sub.List() {
		if strings.HasPrefix(info.ID, prefix) {
			s.sub.Cancel(info.ID)
			n++
		}
	}
	return n
}

// onTrigger renders the reminder and hands it to the sink. A delivery
// failure is reported and must never propagate back into the trigger
// dispatch loop or cancel the recurring trigger.
func (s *Scheduler) onTrigger(ctx context.Context, p trigger.Payload) {
	text := renderReminder(p, s.lead)
	if err := s.sink.Send(ctx, p.SubscriberID, text); err != nil {
		s.log.Warn("reminder delivery failed",
			logx.Int64("subscriber", p.SubscriberID),
			logx.String("subject", p.Subject),
			logx.Err(err))
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{
				Type: eventbus.TypeDeliveryFailed,
				Data: fmt.Sprintf("subscriber=%d subject=%s: %v", p.SubscriberID, p.Subject, err),
			})
		}
	}
}

func renderReminder(p trigger.Payload, lead int) string {
	return fmt.Sprintf("Час йти в універ! Через %d хв починається %s в кабінеті %s.", lead, p.Subject, p.Room)
}

func (s *Scheduler) lockFor(subscriberID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.locks[subscriberID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[subscriberID] = mu
	}
	return mu
}

// triggerID derives the deterministic identifier for entry i of a
// subscriber's timetable, using the (possibly lead-shifted) trigger weekday.
func triggerID(subscriberID int64, wd time.Weekday, i int) string {
	return fmt.Sprintf("%s%d/%d/%d", idPrefix, subscriberID, int(wd), i)
}

func subscriberPrefix(subscriberID int64) string {
	return fmt.Sprintf("%s%d/", idPrefix, subscriberID)
}

// ownerOf extracts the subscriber identity from a trigger identifier.
func ownerOf(id string) (int64, bool) {
	if !strings.HasPrefix(id, idPrefix) {
		return 0, false
	}
	rest := strings.TrimPrefix(id, idPrefix)
	slash := strings.IndexByte(rest, '/')
	if slash <= 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(rest[:slash], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
