package config

import (
	"lessonbot/internal/timetable"
)

type Config struct {
	Telegram  TelegramConfig    `json:"telegram"`
	Logging   LoggingConfig     `json:"logging"`
	Reminder  ReminderConfig    `json:"reminder"`
	Notify    NotifyConfig      `json:"notify,omitempty"`
	Timetable []timetable.Entry `json:"timetable"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ReminderConfig controls the trigger registry and the lead time.
type ReminderConfig struct {
	// LeadMinutes is how long before a lesson the reminder fires.
	// Defaults to 15.
	LeadMinutes int `json:"lead_minutes,omitempty"`

	// Trigger timezone (IANA TZ). Empty means the process-local zone.
	Timezone string `json:"timezone,omitempty"`

	Workers   int `json:"workers,omitempty"`
	QueueSize int `json:"queue_size,omitempty"`
}

// NotifyConfig controls the outbound delivery pipeline.
type NotifyConfig struct {
	Workers    int `json:"workers,omitempty"`
	QueueSize  int `json:"queue_size,omitempty"`
	RatePerSec int `json:"rate_per_sec,omitempty"`
	RetryMax   int `json:"retry_max,omitempty"`
}
