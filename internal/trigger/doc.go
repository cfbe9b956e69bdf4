// Package trigger provides the weekly-recurrence timer facility the
// reminder scheduler registers against.
//
// # Overview
//
// A trigger is a named weekly recurrence (weekday + time of day) carrying an
// opaque payload. Identifiers are caller-derived and unique: registering a
// live identifier twice fails with ErrDuplicateIdentifier. The registry's own
// listing is the source of truth for what is currently registered; callers
// are expected to re-derive identifiers rather than keep bookkeeping of
// their own.
//
// # Dispatch
//
// Firings are decoupled from the cron runner: each due trigger is enqueued
// onto a bounded queue drained by a worker pool, so a slow callback cannot
// stall the timer loop. A full queue drops the firing with a warning.
//
// # Lifecycle
//
// The registry can be started and stopped at runtime. Registering while
// stopped is supported: definitions are stored and attached to the cron
// runner on the next Start.
package trigger
