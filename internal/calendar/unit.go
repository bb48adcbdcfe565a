// Package calendar reads timezone-aware calendar components (second, minute,
// day, month, year) and names the units a rollover trigger can watch.
package calendar

import (
	"errors"
	"fmt"
	"strings"
)

// Unit is one of the five calendar components a trigger can watch.
type Unit string

const (
	Second Unit = "second"
	Minute Unit = "minute"
	Day    Unit = "day"
	Month  Unit = "month"
	Year   Unit = "year"
)

// Units lists every supported unit in persisted-document order.
var Units = []Unit{Second, Minute, Day, Month, Year}

var ErrUnknownUnit = errors.New("unknown calendar unit")

func (u Unit) Valid() bool {
	switch u {
	case Second, Minute, Day, Month, Year:
		return true
	}
	return false
}

func (u Unit) String() string { return string(u) }

// ParseUnit accepts a unit name case-insensitively.
func ParseUnit(raw string) (Unit, error) {
	u := Unit(strings.ToLower(strings.TrimSpace(raw)))
	if !u.Valid() {
		return "", fmt.Errorf("%w %q (allowed: second, minute, day, month, year)", ErrUnknownUnit, raw)
	}
	return u, nil
}
