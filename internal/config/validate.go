package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tgtrigger/internal/calendar"
	"tgtrigger/internal/trigger"
)

const (
	ActionLog     = "log"
	ActionMessage = "message"
)

// Validate checks everything that can be checked without network access.
// All problems are reported at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}
	if g := strings.TrimSpace(cfg.Telegram.GroupLog); g != "" && cfg.Telegram.GroupLogID() == 0 {
		errs = append(errs, fmt.Errorf("telegram.group_log: invalid chat id %q", g))
	}

	if _, err := calendar.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
	}
	if _, _, err := cfg.Scheduler.Durations(); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "memory", "mem":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			errs = append(errs, errors.New("storage.path is required when storage.driver=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}

	names := map[string]bool{}
	for i, t := range cfg.Triggers {
		path := fmt.Sprintf("triggers[%d]", i)
		if err := t.Validate(path); err != nil {
			errs = append(errs, err)
		}
		if n := strings.TrimSpace(t.Name); n != "" {
			if names[n] {
				errs = append(errs, fmt.Errorf("%s: duplicate name %q", path, n))
			}
			names[n] = true
		}
	}
	return errors.Join(errs...)
}

// Durations returns the poll interval and restart backoff with defaults applied.
func (s SchedulerConfig) Durations() (poll, backoff time.Duration, err error) {
	poll, err = ParseDurationOrDefault("scheduler.poll_interval", s.PollInterval, trigger.DefaultPollInterval)
	if err != nil {
		return 0, 0, err
	}
	backoff, err = ParseDurationOrDefault("scheduler.restart_backoff", s.RestartBackoff, time.Second)
	if err != nil {
		return 0, 0, err
	}
	return poll, backoff, nil
}

// Spec converts the every/unit pair into a trigger spec.
func (t TriggerConfig) Spec() (trigger.Spec, error) {
	every := strings.TrimSpace(string(t.Every))
	unit := strings.TrimSpace(t.Unit)
	switch {
	case every != "" && unit != "":
		return trigger.Spec{}, errors.New("set either every or unit, not both")
	case every != "":
		return trigger.ParseSpec("every:" + every)
	case unit != "":
		return trigger.ParseSpec("unit:" + unit)
	}
	return trigger.Spec{}, errors.New("every or unit is required")
}

func (t TriggerConfig) Validate(path string) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%s: name is required", path)
	}
	if _, err := t.Spec(); err != nil {
		return fmt.Errorf("%s (%s): %w", path, t.Name, err)
	}
	switch strings.ToLower(strings.TrimSpace(t.Action)) {
	case ActionLog:
	case ActionMessage:
		if t.ChatID == 0 {
			return fmt.Errorf("%s (%s): chat_id is required for action %q", path, t.Name, ActionMessage)
		}
		if strings.TrimSpace(t.Text) == "" {
			return fmt.Errorf("%s (%s): text is required for action %q", path, t.Name, ActionMessage)
		}
	default:
		return fmt.Errorf("%s (%s): unknown action %q (use %q or %q)", path, t.Name, t.Action, ActionLog, ActionMessage)
	}
	return nil
}
