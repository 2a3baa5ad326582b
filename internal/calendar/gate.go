package calendar

import (
	"time"

	"attendbot/internal/config"
)

// Gate answers weekday eligibility in the school's configured time zone.
// It never reads ambient process time: callers pass the instant explicitly,
// and the gate converts it to the school zone before any calendar decision.
// Using the host zone instead would silently shift the day boundary and
// break the one-session-per-day invariant.
type Gate struct {
	loc      *time.Location
	workdays map[int]bool
}

// NewGate builds a gate for the given zone and ISO workday list
// (1=Monday .. 7=Sunday).
func NewGate(loc *time.Location, workdays []int) *Gate {
	set := make(map[int]bool, len(workdays))
	for _, day := range workdays {
		if day >= 1 && day <= 7 {
			set[day] = true
		}
	}
	return &Gate{loc: loc, workdays: set}
}

// Location returns the school time zone.
func (g *Gate) Location() *time.Location { return g.loc }

// IsEligible reports whether the instant falls on a configured workday in
// the school time zone.
func (g *Gate) IsEligible(instant time.Time) bool {
	return g.workdays[isoWeekday(instant.In(g.loc))]
}

// LocalDate returns the calendar day the instant belongs to in the school
// time zone, as a midnight-UTC date value suitable for a DATE column.
func (g *Gate) LocalDate(instant time.Time) time.Time {
	local := instant.In(g.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// At returns the instant of the given wall clock on the instant's local date.
func (g *Gate) At(instant time.Time, clock config.Clock) time.Time {
	local := instant.In(g.loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		clock.Hour, clock.Minute, 0, 0, g.loc)
}

func isoWeekday(t time.Time) int {
	// time.Weekday counts Sunday as 0; reports and config use ISO numbering.
	return (int(t.Weekday())+6)%7 + 1
}
