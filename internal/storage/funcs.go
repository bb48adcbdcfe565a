package storage

import (
	"context"
	"errors"
	"sync"

	"tgtrigger/internal/calendar"
)

// Funcs adapts caller-supplied read/write functions (for example backed by
// the bot's own database) to Store. Both functions are required.
type Funcs struct {
	GetFunc   func(ctx context.Context, unit calendar.Unit) (int, error)
	SetFunc   func(ctx context.Context, unit calendar.Unit, value int) error
	CloseFunc func() error
}

func (f Funcs) Get(ctx context.Context, unit calendar.Unit) (int, error) {
	if f.GetFunc == nil {
		return 0, errors.New("storage: GetFunc not set")
	}
	return f.GetFunc(ctx, unit)
}

func (f Funcs) Set(ctx context.Context, unit calendar.Unit, value int) error {
	if f.SetFunc == nil {
		return errors.New("storage: SetFunc not set")
	}
	return f.SetFunc(ctx, unit, value)
}

func (f Funcs) Close() error {
	if f.CloseFunc == nil {
		return nil
	}
	return f.CloseFunc()
}

// Serialize wraps st so that its Get and Set calls never run concurrently.
// Use it for caller-supplied stores that are not safe for concurrent use.
func Serialize(st Store) Store {
	if st == nil {
		return nil
	}
	if _, ok := st.(*serialStore); ok {
		return st
	}
	return &serialStore{inner: st}
}

type serialStore struct {
	mu    sync.Mutex
	inner Store
}

func (s *serialStore) Get(ctx context.Context, unit calendar.Unit) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Get(ctx, unit)
}

func (s *serialStore) Set(ctx context.Context, unit calendar.Unit, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Set(ctx, unit, value)
}

func (s *serialStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}
