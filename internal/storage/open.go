package storage

import (
	"errors"
	"strings"

	"tgtrigger/internal/calendar"
	logx "tgtrigger/pkg/logx"
)

// Open initializes the configured store. seed is written for every unit that
// has no persisted value yet, so a cold start never fires spuriously.
func Open(cfg Config, seed calendar.Reading, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file":
		return openFile(cfg, seed, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, seed, log)
	case "memory", "mem":
		return NewMemory(seed), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
