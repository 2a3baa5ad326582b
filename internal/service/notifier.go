package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"attendbot/internal/calendar"
	"attendbot/internal/models"
)

// ReminderKind identifies a scheduled attendance reminder.
type ReminderKind string

const (
	ReminderMorning   ReminderKind = "morning_reminder"
	ReminderLate      ReminderKind = "late_warning"
	ReminderCheckout  ReminderKind = "checkout_reminder"
	ReminderForgotten ReminderKind = "forgotten_checkout"
)

// Notifier delivers a reminder to a user. Message wording and language are
// the chat transport's responsibility.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind ReminderKind) error
}

// ReminderStore is the committed-state view the scheduler queries before
// deciding who to remind.
type ReminderStore interface {
	AbsentTeachers(ctx context.Context, date time.Time) ([]models.Teacher, error)
	OpenSessionsOn(ctx context.Context, date time.Time) ([]models.AttendanceSession, error)
}

// ReminderOffsets positions the four reminders around the work schedule,
// in minutes.
type ReminderOffsets struct {
	MorningBefore  int
	LateAfter      int
	CheckoutBefore int
	ForgottenAfter int
}

// ReminderScheduler fires workday reminders derived from the configured
// schedule. Recipients are resolved from committed storage at fire time, so
// two live instances sending the same reminder is the worst overlap case;
// attendance data is never touched.
type ReminderScheduler struct {
	gate     *calendar.Gate
	schedule *calendar.Schedule
	store    ReminderStore
	notifier Notifier
	offsets  ReminderOffsets
	logger   *zap.Logger

	now func() time.Time // test seam
}

// NewReminderScheduler builds the scheduler.
func NewReminderScheduler(
	gate *calendar.Gate,
	schedule *calendar.Schedule,
	store ReminderStore,
	notifier Notifier,
	offsets ReminderOffsets,
	logger *zap.Logger,
) *ReminderScheduler {
	return &ReminderScheduler{
		gate:     gate,
		schedule: schedule,
		store:    store,
		notifier: notifier,
		offsets:  offsets,
		logger:   logger,
		now:      time.Now,
	}
}

// Run fires reminders until the context is cancelled.
func (s *ReminderScheduler) Run(ctx context.Context) {
	for {
		kind, at, ok := s.Next(s.now())
		if !ok {
			// No eligible workday within the lookahead; re-evaluate later.
			at = s.now().Add(time.Hour)
		}
		timer := time.NewTimer(time.Until(at))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if ok {
				s.fire(ctx, kind, at)
			}
		}
	}
}

// Next returns the earliest reminder instant strictly after now, scanning up
// to a week ahead across configured workdays.
func (s *ReminderScheduler) Next(now time.Time) (ReminderKind, time.Time, bool) {
	bestKind := ReminderKind("")
	var bestAt time.Time

	for day := 0; day <= 7; day++ {
		dayRef := now.AddDate(0, 0, day)
		for kind, at := range s.instantsOn(dayRef) {
			if !at.After(now) {
				continue
			}
			if !s.gate.IsEligible(at) {
				continue
			}
			if bestAt.IsZero() || at.Before(bestAt) {
				bestKind, bestAt = kind, at
			}
		}
		if !bestAt.IsZero() {
			return bestKind, bestAt, true
		}
	}
	return "", time.Time{}, false
}

func (s *ReminderScheduler) instantsOn(dayRef time.Time) map[ReminderKind]time.Time {
	start := s.schedule.WorkStartAt(dayRef)
	end := s.schedule.WorkEndAt(dayRef)
	return map[ReminderKind]time.Time{
		ReminderMorning:   start.Add(-time.Duration(s.offsets.MorningBefore) * time.Minute),
		ReminderLate:      start.Add(time.Duration(s.offsets.LateAfter) * time.Minute),
		ReminderCheckout:  end.Add(-time.Duration(s.offsets.CheckoutBefore) * time.Minute),
		ReminderForgotten: end.Add(time.Duration(s.offsets.ForgottenAfter) * time.Minute),
	}
}

func (s *ReminderScheduler) fire(ctx context.Context, kind ReminderKind, at time.Time) {
	date := s.gate.LocalDate(at)

	var recipients []int64
	switch kind {
	case ReminderMorning, ReminderLate:
		teachers, err := s.store.AbsentTeachers(ctx, date)
		if err != nil {
			s.logger.Error("failed to resolve reminder recipients",
				zap.String("kind", string(kind)), zap.Error(err))
			return
		}
		for _, t := range teachers {
			recipients = append(recipients, t.UserID)
		}
	case ReminderCheckout, ReminderForgotten:
		sessions, err := s.store.OpenSessionsOn(ctx, date)
		if err != nil {
			s.logger.Error("failed to resolve reminder recipients",
				zap.String("kind", string(kind)), zap.Error(err))
			return
		}
		for _, session := range sessions {
			recipients = append(recipients, session.UserID)
		}
	}

	for _, userID := range recipients {
		if err := s.notifier.Notify(ctx, userID, kind); err != nil {
			s.logger.Warn("reminder delivery failed",
				zap.Int64("user_id", userID),
				zap.String("kind", string(kind)),
				zap.Error(err))
		}
	}
	s.logger.Info("reminder sweep complete",
		zap.String("kind", string(kind)),
		zap.Int("recipients", len(recipients)))
}
