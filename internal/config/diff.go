package config

import (
	"reflect"
	"strings"

	logx "tgtrigger/pkg/logx"
)

// Change summarizes the difference between two configs.
type Change struct {
	Sections []string
	// Fields are safe to log; tokens are never included.
	Fields []logx.Field
	// NeedsRestart lists changed sections that are only read at startup.
	NeedsRestart []string
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

func Diff(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var c Change
	mark := func(section string, restart bool, fields ...logx.Field) {
		c.Sections = append(c.Sections, section)
		c.Fields = append(c.Fields, fields...)
		if restart {
			c.NeedsRestart = append(c.NeedsRestart, section)
		}
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) {
		mark("telegram.connection", true, logx.String("telegram.poll_timeout", strings.TrimSpace(nt.PollTimeout)))
	}
	if !reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) || strings.TrimSpace(ot.GroupLog) != strings.TrimSpace(nt.GroupLog) {
		mark("telegram.access", false,
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(nt.GroupLog) != ""),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		mark("logging", false,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		mark("scheduler", true, logx.String("scheduler.timezone", newCfg.Scheduler.Timezone))
	}
	if oldCfg.Storage != newCfg.Storage {
		mark("storage", true, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if !reflect.DeepEqual(oldCfg.Triggers, newCfg.Triggers) {
		mark("triggers", true, logx.Int("triggers.count", len(newCfg.Triggers)))
	}
	return c
}
