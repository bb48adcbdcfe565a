package trigger

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"tgtrigger/internal/calendar"
)

// Kind is the firing mode of a Spec.
type Kind int

const (
	KindDuration Kind = iota + 1
	KindCalendar
)

func (k Kind) String() string {
	switch k {
	case KindDuration:
		return "duration"
	case KindCalendar:
		return "calendar"
	}
	return "invalid"
}

// ErrInvalidSpec reports a Spec that can never fire.
var ErrInvalidSpec = errors.New("invalid trigger spec")

// Spec says when a trigger fires: either every fixed interval, or whenever a
// calendar unit changes value.
type Spec struct {
	Kind  Kind
	Every time.Duration
	Unit  calendar.Unit
}

// Every returns a duration spec.
func Every(d time.Duration) Spec { return Spec{Kind: KindDuration, Every: d} }

// OnRollover returns a calendar spec for u.
func OnRollover(u calendar.Unit) Spec { return Spec{Kind: KindCalendar, Unit: u} }

func (s Spec) Validate() error {
	switch s.Kind {
	case KindDuration:
		if s.Every <= 0 {
			return fmt.Errorf("%w: interval must be > 0 (got %s)", ErrInvalidSpec, s.Every)
		}
		return nil
	case KindCalendar:
		if !s.Unit.Valid() {
			return fmt.Errorf("%w: %w %q", ErrInvalidSpec, calendar.ErrUnknownUnit, string(s.Unit))
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidSpec, int(s.Kind))
	}
}

func (s Spec) String() string {
	switch s.Kind {
	case KindDuration:
		return "every " + s.Every.String()
	case KindCalendar:
		return "on " + string(s.Unit)
	}
	return "invalid"
}

// ParseSpec parses the textual form used in config files.
//
// Supported forms:
//   - Go duration: "5s", "1h30m" (optionally prefixed with "every:")
//   - Plain number of seconds: "10", "42.13"
//   - Unit name: "second", "minute", "day", "month", "year" (optionally
//     prefixed with "unit:")
func ParseSpec(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("%w: empty", ErrInvalidSpec)
	}
	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "every:"):
		return parseEvery(strings.TrimSpace(s[len("every:"):]))
	case strings.HasPrefix(low, "unit:"):
		u, err := calendar.ParseUnit(s[len("unit:"):])
		if err != nil {
			return Spec{}, err
		}
		return OnRollover(u), nil
	}
	if u, err := calendar.ParseUnit(s); err == nil {
		return OnRollover(u), nil
	}
	return parseEvery(s)
}

func parseEvery(v string) (Spec, error) {
	var d time.Duration
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if math.IsNaN(secs) || math.IsInf(secs, 0) || secs > math.MaxInt64/float64(time.Second) {
			return Spec{}, fmt.Errorf("%w: %q seconds is out of range", ErrInvalidSpec, v)
		}
		d = time.Duration(math.Round(secs * float64(time.Second)))
	} else if d, err = time.ParseDuration(v); err != nil {
		return Spec{}, fmt.Errorf("%w: %q is neither a duration nor a calendar unit", ErrInvalidSpec, v)
	}
	sp := Every(d)
	if err := sp.Validate(); err != nil {
		return Spec{}, err
	}
	return sp, nil
}
