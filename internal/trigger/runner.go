package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tgtrigger/internal/calendar"
	"tgtrigger/internal/eventbus"
	"tgtrigger/internal/storage"
	logx "tgtrigger/pkg/logx"
)

// DefaultPollInterval is how often calendar triggers compare the current
// reading with the persisted one.
const DefaultPollInterval = time.Second

// state is the observable part of one trigger's lifetime.
type state struct {
	mu        sync.Mutex
	alive     bool
	starts    uint64
	fires     uint64
	lastFire  time.Time
	lastRun   string
	lastErr   string
	lastErrAt time.Time
	since     time.Time

	// pending holds a calendar value whose callback ran but whose write
	// failed. It outlives restarts so the next run persists it before polling.
	pending    int
	hasPending bool
}

func (s *state) setAlive(v bool, at time.Time) {
	s.mu.Lock()
	s.alive = v
	if v {
		s.starts++
		s.since = at
	}
	s.mu.Unlock()
}

func (s *state) noteFire(at time.Time, runID string) {
	s.mu.Lock()
	s.fires++
	s.lastFire = at
	s.lastRun = runID
	s.mu.Unlock()
}

func (s *state) setPending(v int) {
	s.mu.Lock()
	s.pending, s.hasPending = v, true
	s.mu.Unlock()
}

func (s *state) clearPending() {
	s.mu.Lock()
	s.hasPending = false
	s.mu.Unlock()
}

func (s *state) takePending() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.hasPending
}

func (s *state) noteErr(at time.Time, err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.lastErrAt = at
	s.mu.Unlock()
}

// runner drives one Definition until ctx is cancelled or it fails.
type runner struct {
	def   Definition
	rt    Runtime
	src   *calendar.Source
	store storage.Store
	poll  time.Duration
	log   logx.Logger
	bus   eventbus.Bus
	st    *state
}

func (r *runner) run(ctx context.Context) error {
	if err := r.def.Spec.Validate(); err != nil {
		return err
	}
	if r.def.Callback == nil {
		return ErrNilCallback
	}
	clock := r.src.Clock()
	r.st.setAlive(true, clock.Now())
	r.bus.Publish(eventbus.Event{Type: eventbus.TriggerStarted, Time: clock.Now(), TriggerID: r.def.ID, Trigger: r.def.Name})
	defer func() {
		r.st.setAlive(false, time.Time{})
		r.bus.Publish(eventbus.Event{Type: eventbus.TriggerStopped, Time: clock.Now(), TriggerID: r.def.ID, Trigger: r.def.Name})
	}()

	switch r.def.Spec.Kind {
	case KindDuration:
		return r.runEvery(ctx)
	default:
		return r.runRollover(ctx)
	}
}

// runEvery alternates invocation and a fixed sleep. Callback time is not
// subtracted from the sleep.
func (r *runner) runEvery(ctx context.Context) error {
	if r.def.RunOnStart {
		if err := r.fire(ctx); err != nil {
			return err
		}
	}
	clock := r.src.Clock()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(r.def.Spec.Every):
		}
		if err := r.fire(ctx); err != nil {
			return err
		}
	}
}

func (r *runner) runRollover(ctx context.Context) error {
	if v, ok := r.st.takePending(); ok {
		if err := r.store.Set(ctx, r.def.Spec.Unit, v); err != nil {
			return fmt.Errorf("write %s: %w", r.def.Spec.Unit, err)
		}
		r.st.clearPending()
		r.log.Info("persisted value left over from a failed write", logx.String("unit", string(r.def.Spec.Unit)), logx.Int("value", v))
	}
	if r.def.RunOnStart {
		if err := r.fire(ctx); err != nil {
			return err
		}
	}
	every := r.poll
	if every <= 0 {
		every = DefaultPollInterval
	}
	clock := r.src.Clock()
	for {
		if err := r.check(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(every):
		}
	}
}

// check fires the callback if the watched unit moved away from its persisted
// value, then persists the new value. A unit with nothing persisted is
// recorded without firing.
func (r *runner) check(ctx context.Context) error {
	unit := r.def.Spec.Unit
	now := r.src.Now().Value(unit)

	last, err := r.store.Get(ctx, unit)
	if errors.Is(err, storage.ErrNoValue) {
		if err := r.store.Set(ctx, unit, now); err != nil {
			return fmt.Errorf("seed %s: %w", unit, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", unit, err)
	}
	if last == now {
		return nil
	}

	r.log.Debug("rollover detected", logx.String("unit", string(unit)), logx.Int("from", last), logx.Int("to", now))
	if err := r.fire(ctx); err != nil {
		return err
	}
	r.st.setPending(now)
	if err := r.store.Set(ctx, unit, now); err != nil {
		return fmt.Errorf("write %s: %w", unit, err)
	}
	r.st.clearPending()
	return nil
}

func (r *runner) fire(ctx context.Context) error {
	runID := uuid.NewString()
	at := r.src.Clock().Now()
	if err := r.def.Callback(ctx, r.rt); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("callback (run %s): %w", runID, err)
	}
	r.st.noteFire(at, runID)
	r.bus.Publish(eventbus.Event{Type: eventbus.TriggerFired, Time: at, TriggerID: r.def.ID, Trigger: r.def.Name, RunID: runID})
	return nil
}
