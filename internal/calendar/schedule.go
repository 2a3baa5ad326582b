package calendar

import (
	"time"

	"attendbot/internal/config"
	"attendbot/internal/models"
)

// Schedule evaluates check-in punctuality and reminder instants against the
// configured work day.
type Schedule struct {
	gate         *Gate
	workStart    config.Clock
	workEnd      config.Clock
	graceMinutes int
}

// NewSchedule builds a schedule bound to the gate's time zone.
func NewSchedule(gate *Gate, workStart, workEnd config.Clock, graceMinutes int) *Schedule {
	if graceMinutes < 0 {
		graceMinutes = 0
	}
	return &Schedule{
		gate:         gate,
		workStart:    workStart,
		workEnd:      workEnd,
		graceMinutes: graceMinutes,
	}
}

// Lateness classifies a check-in instant against work start plus grace
// period. Returns the punctuality status and minutes past the grace deadline
// (zero when on time).
func (s *Schedule) Lateness(instant time.Time) (string, int) {
	local := instant.In(s.gate.Location())
	minutes := local.Hour()*60 + local.Minute()
	deadline := s.workStart.Minutes() + s.graceMinutes
	if minutes <= deadline {
		return models.CheckInOnTime, 0
	}
	return models.CheckInLate, minutes - deadline
}

// WorkStartAt returns the work start instant on the instant's local date.
func (s *Schedule) WorkStartAt(instant time.Time) time.Time {
	return s.gate.At(instant, s.workStart)
}

// WorkEndAt returns the work end instant on the instant's local date.
func (s *Schedule) WorkEndAt(instant time.Time) time.Time {
	return s.gate.At(instant, s.workEnd)
}
