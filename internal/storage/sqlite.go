package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tgtrigger/internal/calendar"
	logx "tgtrigger/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	// SQLite serializes writers anyway; mu keeps Get/Set pairs from different
	// triggers strictly ordered like the file driver.
	mu sync.Mutex
}

func openSQLite(cfg Config, seed calendar.Reading, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := st.seed(ctx, seed); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) seed(ctx context.Context, r calendar.Reading) error {
	for _, u := range calendar.Units {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO clock_state(unit, value) VALUES(?, ?)`,
			string(u), r.Value(u),
		); err != nil {
			return fmt.Errorf("seed %s: %w", u, err)
		}
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, unit calendar.Unit) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, ErrClosed
	}
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM clock_state WHERE unit = ?`, string(unit)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", unit, ErrNoValue)
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", unit, err)
	}
	return v, nil
}

func (s *sqliteStore) Set(ctx context.Context, unit calendar.Unit, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clock_state(unit, value) VALUES(?, ?)
		 ON CONFLICT(unit) DO UPDATE SET value = excluded.value`,
		string(unit), value,
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", unit, err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
