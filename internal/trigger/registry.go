package trigger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"tgtrigger/internal/calendar"
	"tgtrigger/internal/dispatch"
	"tgtrigger/internal/transport"
)

var (
	ErrNilCallback = errors.New("trigger callback is nil")
	// ErrUnitTaken is returned when a second calendar trigger is registered on
	// a unit. The persisted state keeps one cursor per unit, so two triggers
	// on the same unit would steal each other's rollovers.
	ErrUnitTaken = errors.New("calendar unit already has a trigger")
)

// Runtime is the set of live host objects handed to every callback.
type Runtime struct {
	Bot        transport.Adapter
	Dispatcher *dispatch.Dispatcher
}

type Callback func(ctx context.Context, rt Runtime) error

// Definition is one registered trigger. It is immutable once returned.
type Definition struct {
	ID         uint64
	Name       string
	Spec       Spec
	RunOnStart bool
	Callback   Callback
}

// Registry holds trigger definitions in registration order.
type Registry struct {
	mu     sync.Mutex
	nextID uint64
	defs   []Definition
	units  map[calendar.Unit]uint64
}

func NewRegistry() *Registry {
	return &Registry{units: map[calendar.Unit]uint64{}}
}

// Register validates spec and stores a new definition. An empty name becomes
// "trigger-<id>".
func (r *Registry) Register(name string, spec Spec, runOnStart bool, cb Callback) (Definition, error) {
	if cb == nil {
		return Definition{}, ErrNilCallback
	}
	if err := spec.Validate(); err != nil {
		return Definition{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if spec.Kind == KindCalendar {
		if owner, ok := r.units[spec.Unit]; ok {
			return Definition{}, fmt.Errorf("%w: %s (trigger %d)", ErrUnitTaken, spec.Unit, owner)
		}
	}
	r.nextID++
	d := Definition{
		ID:         r.nextID,
		Name:       strings.TrimSpace(name),
		Spec:       spec,
		RunOnStart: runOnStart,
		Callback:   cb,
	}
	if d.Name == "" {
		d.Name = fmt.Sprintf("trigger-%d", d.ID)
	}
	if spec.Kind == KindCalendar {
		r.units[spec.Unit] = d.ID
	}
	r.defs = append(r.defs, d)
	return d, nil
}

// Handler returns a registration helper that registers a callback under
// name and hands it back unchanged, so it can wrap function literals inline.
func (r *Registry) Handler(spec Spec, runOnStart bool) func(name string, cb Callback) (Callback, error) {
	return func(name string, cb Callback) (Callback, error) {
		if _, err := r.Register(name, spec, runOnStart, cb); err != nil {
			return nil, err
		}
		return cb, nil
	}
}

// Definitions returns a copy of every definition in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.defs)
}
