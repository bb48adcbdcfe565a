package trigger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tgtrigger/internal/calendar"
	"tgtrigger/internal/eventbus"
	"tgtrigger/internal/storage"
)

func TestStartTwiceFails(t *testing.T) {
	t.Parallel()
	clk := newFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	e := startEmitter(t, NewRegistry(), Options{Source: calendar.NewSource(clk, time.UTC)})
	if err := e.Start(context.Background(), Runtime{}); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start err = %v, want ErrAlreadyStarted", err)
	}
}

func TestCalendarTriggerNeedsStore(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	if _, err := reg.Register("daily", OnRollover(calendar.Day), false, func(context.Context, Runtime) error { return nil }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	e := NewEmitter(reg, Options{})
	if err := e.Start(context.Background(), Runtime{}); !errors.Is(err, ErrNoStore) {
		t.Fatalf("Start err = %v, want ErrNoStore", err)
	}
	if e.Snapshot().Started {
		t.Fatal("emitter should not be started")
	}
}

func waitEvent(t *testing.T, ch <-chan eventbus.Event, typ string) eventbus.Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event", typ)
		}
	}
}

func TestFailedTriggerIsReportedAndIsolated(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	bus := eventbus.New()
	events, unsub := bus.Subscribe(64)
	defer unsub()

	reg := NewRegistry()
	boom := errors.New("boom")
	bad, _ := reg.Register("bad", Every(time.Second), true, func(context.Context, Runtime) error { return boom })
	var n atomic.Int64
	if _, err := reg.Register("good", Every(time.Second), false, counter(&n)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	e := startEmitter(t, reg, Options{Source: calendar.NewSource(clk, time.UTC), Bus: bus})

	ev := waitEvent(t, events, eventbus.TriggerFailed)
	if ev.TriggerID != bad.ID || !errors.Is(ev.Err, boom) {
		t.Fatalf("failed event = %+v", ev)
	}

	clk.BlockUntil(t, 1)
	clk.Advance(time.Second)
	clk.BlockUntil(t, 1)
	if n.Load() != 1 {
		t.Fatalf("good trigger fires = %d, want 1", n.Load())
	}
	if !errors.Is(e.Err(), boom) {
		t.Fatalf("Err = %v, want boom", e.Err())
	}

	snap := e.Snapshot()
	if len(snap.Triggers) != 2 {
		t.Fatalf("snapshot triggers = %d", len(snap.Triggers))
	}
	b, g := snap.Triggers[0], snap.Triggers[1]
	if b.Alive || b.LastError == "" || b.Fires != 0 || !b.LastFire.IsZero() {
		t.Fatalf("bad status = %+v", b)
	}
	if !g.Alive || g.Fires != 1 || g.NextFire.IsZero() {
		t.Fatalf("good status = %+v", g)
	}
}

func TestRestartOnFailure(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	reg := NewRegistry()
	var calls atomic.Int64
	if _, err := reg.Register("flaky", Every(time.Hour), true, func(context.Context, Runtime) error {
		if calls.Add(1) < 3 {
			return errors.New("not yet")
		}
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	e := startEmitter(t, reg, Options{
		Source:           calendar.NewSource(clk, time.UTC),
		RestartOnFailure: true,
		RestartBackoff:   time.Millisecond,
	})

	clk.BlockUntil(t, 1)
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	st := e.Snapshot().Triggers[0]
	if !st.Alive || st.Starts != 3 {
		t.Fatalf("status = %+v", st)
	}
	if e.Err() != nil {
		t.Fatalf("Err = %v, want nil", e.Err())
	}
}

func TestStopJoinsTriggers(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := newFakeClock(start)
	reg := NewRegistry()
	var n atomic.Int64
	_, _ = reg.Register("tick", Every(time.Second), false, counter(&n))
	_, _ = reg.Register("minutely", OnRollover(calendar.Minute), false, counter(&n))
	e := NewEmitter(reg, Options{Source: calendar.NewSource(clk, time.UTC), Store: storage.NewMemory(calendar.ReadingAt(start, time.UTC))})

	before := e.Snapshot()
	if before.Started || len(before.Triggers) != 2 || before.Triggers[1].Spec != "on minute" {
		t.Fatalf("snapshot before start = %+v", before)
	}

	if err := e.Start(context.Background(), Runtime{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.BlockUntil(t, 2)
	next := e.Snapshot().Triggers[1].NextFire
	if want := start.Add(time.Minute); !next.Equal(want) {
		t.Fatalf("next rollover = %s, want %s", next, want)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	for _, st := range e.Snapshot().Triggers {
		if st.Alive {
			t.Fatalf("%s still alive after Stop", st.Name)
		}
	}
	if e.Err() != nil {
		t.Fatalf("Err after clean stop = %v", e.Err())
	}
}

func TestDefaultSourceUsesDefaultTimezone(t *testing.T) {
	t.Parallel()
	if tz := NewEmitter(NewRegistry(), Options{}).Snapshot().Timezone; tz != calendar.DefaultTimezone {
		t.Fatalf("timezone = %q, want %q", tz, calendar.DefaultTimezone)
	}
}

func TestFailedWriteDoesNotRefireAfterRestart(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Date(2024, 3, 10, 12, 11, 0, 0, time.UTC))
	var mu sync.Mutex
	persisted := 10
	writes := 0
	store := storage.Funcs{
		GetFunc: func(context.Context, calendar.Unit) (int, error) {
			mu.Lock()
			defer mu.Unlock()
			return persisted, nil
		},
		SetFunc: func(_ context.Context, _ calendar.Unit, v int) error {
			mu.Lock()
			defer mu.Unlock()
			writes++
			if writes == 1 {
				return errors.New("disk full")
			}
			persisted = v
			return nil
		},
	}

	reg := NewRegistry()
	var n atomic.Int64
	if _, err := reg.Register("minutely", OnRollover(calendar.Minute), false, counter(&n)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	e := startEmitter(t, reg, Options{
		Source:           calendar.NewSource(clk, time.UTC),
		Store:            store,
		RestartOnFailure: true,
		RestartBackoff:   time.Millisecond,
	})

	clk.BlockUntil(t, 1)
	if n.Load() != 1 {
		t.Fatalf("fires for one rollover = %d, want 1", n.Load())
	}
	mu.Lock()
	got := persisted
	mu.Unlock()
	if got != 11 {
		t.Fatalf("persisted minute = %d, want 11", got)
	}
	st := e.Snapshot().Triggers[0]
	if !st.Alive || st.Starts != 2 || st.Fires != 1 || st.LastError == "" {
		t.Fatalf("status = %+v", st)
	}
}
