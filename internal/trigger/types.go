package trigger

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrDuplicateIdentifier = errors.New("trigger identifier already registered")

// Config controls the trigger registry.
type Config struct {
	Workers   int
	QueueSize int
	Timezone  string // IANA TZ, e.g. "Europe/Kyiv"; empty means time.Local
}

// Payload is the opaque data a trigger carries back into its callback.
type Payload struct {
	SubscriberID int64
	Subject      string
	Room         string
}

// Callback is invoked on the registry's worker pool each time a trigger
// fires. It must not depend on any state besides the payload it is handed.
type Callback func(ctx context.Context, p Payload)

// Info describes one registered trigger, as returned by List.
type Info struct {
	ID      string
	Weekday time.Weekday
	Hour    int
	Minute  int
	Payload Payload
}

type def struct {
	id      string
	weekday time.Weekday
	hour    int
	minute  int
	payload Payload
	cb      Callback
	entryID cron.EntryID
}

type firing struct {
	id      string
	payload Payload
	cb      Callback
}
