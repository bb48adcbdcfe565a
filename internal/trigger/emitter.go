package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tgtrigger/internal/calendar"
	"tgtrigger/internal/eventbus"
	"tgtrigger/internal/runtime/supervisor"
	"tgtrigger/internal/storage"
	logx "tgtrigger/pkg/logx"
)

var (
	ErrAlreadyStarted = errors.New("emitter already started")
	ErrNoStore        = errors.New("calendar triggers need a store")
)

// Options configures an Emitter. Zero values fall back to the system clock
// in calendar.DefaultTimezone, a 1s poll, no events, no logging and no restarts.
type Options struct {
	Source       *calendar.Source
	Store        storage.Store
	PollInterval time.Duration
	Bus          eventbus.Bus
	Logger       logx.Logger

	// RestartOnFailure restarts a failed trigger after RestartBackoff
	// (doubling up to 16x). Without it a failed trigger stays stopped.
	RestartOnFailure bool
	RestartBackoff   time.Duration
}

// Emitter starts one supervised goroutine per registered trigger.
type Emitter struct {
	reg *Registry
	opt Options
	log logx.Logger

	mu      sync.Mutex
	started bool
	sup     *supervisor.Supervisor
	entries []*entry
}

type entry struct {
	def Definition
	st  *state
}

func NewEmitter(reg *Registry, opt Options) *Emitter {
	if reg == nil {
		reg = NewRegistry()
	}
	if opt.Source == nil {
		opt.Source = calendar.NewSource(nil, nil)
	}
	if opt.PollInterval <= 0 {
		opt.PollInterval = DefaultPollInterval
	}
	if opt.Bus == nil {
		opt.Bus = eventbus.Nop()
	}
	if opt.RestartBackoff <= 0 {
		opt.RestartBackoff = time.Second
	}
	log := opt.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Emitter{reg: reg, opt: opt, log: log.With(logx.String("comp", "trigger"))}
}

func (e *Emitter) Registry() *Registry { return e.reg }

// Start spawns a task for every definition registered so far. Definitions
// registered afterwards are not run. It may be called only once.
func (e *Emitter) Start(ctx context.Context, rt Runtime) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return ErrAlreadyStarted
	}

	defs := e.reg.Definitions()
	store := e.opt.Store
	for _, d := range defs {
		if d.Spec.Kind == KindCalendar && store == nil {
			return fmt.Errorf("%w (trigger %q)", ErrNoStore, d.Name)
		}
	}
	if store != nil {
		store = storage.Serialize(store)
	}

	e.started = true
	e.sup = supervisor.New(ctx, supervisor.WithLogger(e.log))
	for _, d := range defs {
		en := &entry{def: d, st: &state{}}
		e.entries = append(e.entries, en)
		r := &runner{
			def:   d,
			rt:    rt,
			src:   e.opt.Source,
			store: store,
			poll:  e.opt.PollInterval,
			log:   e.log.With(logx.Uint64("trigger_id", d.ID), logx.String("trigger", d.Name)),
			bus:   e.opt.Bus,
			st:    en.st,
		}
		e.sup.GoRestart(taskName(d), r.run, e.restartOptions(en)...)
	}
	e.log.Info("triggers started", logx.Int("count", len(defs)), logx.String("tz", e.opt.Source.Location().String()))
	return nil
}

func (e *Emitter) restartOptions(en *entry) []supervisor.RestartOption {
	onExit := func(err error, willRestart bool) {
		now := e.opt.Source.Clock().Now()
		en.st.noteErr(now, err)
		e.log.Error("trigger failed",
			logx.Uint64("trigger_id", en.def.ID),
			logx.String("trigger", en.def.Name),
			logx.String("spec", en.def.Spec.String()),
			logx.Bool("restart", willRestart),
			logx.Err(err),
		)
		e.opt.Bus.Publish(eventbus.Event{Type: eventbus.TriggerFailed, Time: now, TriggerID: en.def.ID, Trigger: en.def.Name, Err: err})
	}
	if !e.opt.RestartOnFailure {
		return []supervisor.RestartOption{supervisor.WithMaxRestarts(-1), supervisor.WithOnExit(onExit)}
	}
	return []supervisor.RestartOption{
		supervisor.WithMaxRestarts(0),
		supervisor.WithRestartBackoff(e.opt.RestartBackoff, 16*e.opt.RestartBackoff),
		supervisor.WithOnExit(onExit),
	}
}

func taskName(d Definition) string { return fmt.Sprintf("trigger.%d.%s", d.ID, d.Name) }

// Stop cancels every trigger and waits for them to return.
func (e *Emitter) Stop(ctx context.Context) error {
	e.mu.Lock()
	sup := e.sup
	e.mu.Unlock()
	if sup == nil {
		return nil
	}
	if err := sup.Stop(ctx); err != nil && ctx.Err() != nil {
		return err
	}
	e.log.Info("triggers stopped")
	return nil
}

// Err returns the first failure of a trigger that was not restarted.
func (e *Emitter) Err() error {
	e.mu.Lock()
	sup := e.sup
	e.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Err()
}
