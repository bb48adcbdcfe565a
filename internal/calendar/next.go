package calendar

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Boundary schedules per unit, in 6-field (seconds-first) cron syntax.
// They are only used to preview the next rollover; firing itself is poll-based.
var boundarySpecs = map[Unit]string{
	Second: "* * * * * *",
	Minute: "0 * * * * *",
	Day:    "0 0 0 * * *",
	Month:  "0 0 0 1 * *",
	Year:   "0 0 0 1 1 *",
}

var boundaryParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextRollover returns the next instant at which u changes value, in the
// source's timezone. It returns the zero time for unknown units.
func (s *Source) NextRollover(u Unit) time.Time {
	return NextRollover(u, s.clock.Now(), s.loc)
}

// NextRollover returns the first boundary of u strictly after from, evaluated in loc.
func NextRollover(u Unit, from time.Time, loc *time.Location) time.Time {
	spec, ok := boundarySpecs[u]
	if !ok {
		return time.Time{}
	}
	sched, err := boundaryParser.Parse(spec)
	if err != nil {
		return time.Time{}
	}
	if loc != nil {
		from = from.In(loc)
	}
	return sched.Next(from)
}
