package storage

import (
	"context"
	"errors"
	"time"

	"tgtrigger/internal/calendar"
)

var (
	// ErrNoValue is returned by Get when nothing was persisted for the unit.
	ErrNoValue = errors.New("no persisted value")
	ErrClosed  = errors.New("store closed")
)

// Store keeps the last-observed value per calendar unit.
type Store interface {
	Get(ctx context.Context, unit calendar.Unit) (int, error)
	Set(ctx context.Context, unit calendar.Unit, value int) error
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "file" (default): JSON document at Path (default ".atrange")
//   - "sqlite": SQLite database at Path
//   - "memory": nothing is written to disk
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// DefaultPath is the file driver's document when no path is configured.
const DefaultPath = ".atrange"
