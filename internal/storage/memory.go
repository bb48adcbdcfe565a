package storage

import (
	"context"
	"fmt"
	"sync"

	"tgtrigger/internal/calendar"
)

// Memory is a process-local Store. State is lost on exit, so it only
// suits tests and deployments that accept a fresh seed on every start.
type Memory struct {
	mu   sync.Mutex
	vals map[calendar.Unit]int
}

// NewMemory returns a Memory store seeded with r.
func NewMemory(r calendar.Reading) *Memory {
	m := &Memory{vals: make(map[calendar.Unit]int, len(calendar.Units))}
	for _, u := range calendar.Units {
		m.vals[u] = r.Value(u)
	}
	return m
}

func (m *Memory) Get(ctx context.Context, unit calendar.Unit) (int, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[unit]
	if !ok {
		return 0, fmt.Errorf("%s: %w", unit, ErrNoValue)
	}
	return v, nil
}

func (m *Memory) Set(ctx context.Context, unit calendar.Unit, value int) error {
	_ = ctx
	m.mu.Lock()
	m.vals[unit] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
