package calendar

import (
	"strings"
	"time"

	// The default timezone must resolve on hosts without zoneinfo.
	_ "time/tzdata"
)

// DefaultTimezone is used when no timezone is configured.
const DefaultTimezone = "Europe/Moscow"

// Clock abstracts wall time and sleeping so runners can be driven by a
// simulated clock in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

// System returns the process wall clock.
func System() Clock { return systemClock{} }

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Reading is the set of calendar components at one instant.
type Reading struct {
	Second int `json:"second"`
	Minute int `json:"minute"`
	Day    int `json:"day"`
	Month  int `json:"month"`
	Year   int `json:"year"`
}

// ReadingAt converts t into calendar components in loc.
func ReadingAt(t time.Time, loc *time.Location) Reading {
	if loc != nil {
		t = t.In(loc)
	}
	return Reading{
		Second: t.Second(),
		Minute: t.Minute(),
		Day:    t.Day(),
		Month:  int(t.Month()),
		Year:   t.Year(),
	}
}

// Value returns the component for u. Unknown units read as 0.
func (r Reading) Value(u Unit) int {
	switch u {
	case Second:
		return r.Second
	case Minute:
		return r.Minute
	case Day:
		return r.Day
	case Month:
		return r.Month
	case Year:
		return r.Year
	}
	return 0
}

// Map returns the reading keyed by unit name, the shape of the persisted document.
func (r Reading) Map() map[string]int {
	m := make(map[string]int, len(Units))
	for _, u := range Units {
		m[string(u)] = r.Value(u)
	}
	return m
}

// Source produces readings against a fixed timezone.
type Source struct {
	clock Clock
	loc   *time.Location
}

// NewSource returns a Source on clock in loc. A nil clock means the system
// clock, a nil loc means DefaultTimezone (UTC if it cannot be loaded).
func NewSource(clock Clock, loc *time.Location) *Source {
	if clock == nil {
		clock = System()
	}
	if loc == nil {
		var err error
		if loc, err = LoadLocation(DefaultTimezone); err != nil {
			loc = time.UTC
		}
	}
	return &Source{clock: clock, loc: loc}
}

// LoadLocation resolves an IANA name, falling back to DefaultTimezone when empty.
func LoadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		tz = DefaultTimezone
	}
	return time.LoadLocation(tz)
}

func (s *Source) Now() Reading { return ReadingAt(s.clock.Now(), s.loc) }

func (s *Source) Clock() Clock { return s.clock }

func (s *Source) Location() *time.Location { return s.loc }
