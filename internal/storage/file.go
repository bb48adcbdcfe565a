package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tgtrigger/internal/calendar"
	logx "tgtrigger/pkg/logx"
)

// fileStore is a dependency-free backend: one JSON object holding every unit.
//
// Get re-reads the document on every call so edits made while the process
// runs are honoured. Set rewrites the whole document through a temp file and
// rename. mu serializes both, which closes the read-modify-write race
// between triggers watching different units.
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	closed bool
}

func openFile(cfg Config, seed calendar.Reading, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	s := &fileStore{log: log, path: path}
	if err := s.seed(seed); err != nil {
		return nil, err
	}
	return s, nil
}

// seed creates the document, or fills in units that are missing from it.
// Existing values are never overwritten.
func (s *fileStore) seed(r calendar.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if errors.Is(err, fs.ErrNotExist) {
		doc = map[string]int{}
	} else if err != nil {
		return err
	}

	added := 0
	for unit, v := range r.Map() {
		if _, ok := doc[unit]; !ok {
			doc[unit] = v
			added++
		}
	}
	if added == 0 {
		return nil
	}
	s.log.Debug("clock state seeded", logx.String("path", s.path), logx.Int("units", added))
	return s.writeLocked(doc)
}

func (s *fileStore) Get(ctx context.Context, unit calendar.Unit) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	doc, err := s.readLocked()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", unit, err)
	}
	v, ok := doc[string(unit)]
	if !ok {
		return 0, fmt.Errorf("%s: %w", unit, ErrNoValue)
	}
	return v, nil
}

func (s *fileStore) Set(ctx context.Context, unit calendar.Unit, value int) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	doc, err := s.readLocked()
	if err != nil {
		return fmt.Errorf("read %s: %w", unit, err)
	}
	doc[string(unit)] = value
	if err := s.writeLocked(doc); err != nil {
		return fmt.Errorf("write %s: %w", unit, err)
	}
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fileStore) readLocked() (map[string]int, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	doc := map[string]int{}
	if len(bytes.TrimSpace(b)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *fileStore) writeLocked(doc map[string]int) error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(doc); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
