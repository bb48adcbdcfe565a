package config

import (
	"strconv"
	"strings"
)

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`

	// Triggers are declared in the config file in addition to the ones the
	// program registers itself.
	Triggers []TriggerConfig `json:"triggers,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is the chat id that receives error logs (e.g. "-1001234567890").
	GroupLog string `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

// GroupLogID returns the parsed log chat id, or 0 when unset or malformed.
func (t TelegramConfig) GroupLogID() int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(t.GroupLog), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// SchedulerConfig controls how triggers run.
//
// Durations are Go duration strings. Defaults:
//   - timezone: "Europe/Moscow"
//   - poll_interval: "1s"
//   - restart_backoff: "1s" (only used with restart_on_failure)
type SchedulerConfig struct {
	Timezone         string `json:"timezone,omitempty"`
	PollInterval     string `json:"poll_interval,omitempty"`
	RestartOnFailure bool   `json:"restart_on_failure,omitempty"`
	RestartBackoff   string `json:"restart_backoff,omitempty"`
}

// StorageConfig selects where calendar triggers keep their last-seen values.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./triggers.db" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"` // file (default) | sqlite | memory
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// TriggerConfig declares a trigger without code. Exactly one of Every and
// Unit must be set.
//
// Actions:
//   - "log": writes Text to the log at info level
//   - "message": sends Text to ChatID (and ThreadID, if set)
type TriggerConfig struct {
	Name       string `json:"name"`
	Every      Interval `json:"every,omitempty"`
	Unit       string `json:"unit,omitempty"`
	RunOnStart bool   `json:"run_on_start,omitempty"`
	Action     string `json:"action"`
	Text       string `json:"text,omitempty"`
	ChatID     int64  `json:"chat_id,omitempty"`
	ThreadID   int    `json:"thread_id,omitempty"`
}
