package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attendbot/internal/calendar"
	"attendbot/internal/config"
	"attendbot/internal/models"
)

type reminderStoreStub struct {
	absent []models.Teacher
	open   []models.AttendanceSession
}

func (s *reminderStoreStub) AbsentTeachers(context.Context, time.Time) ([]models.Teacher, error) {
	return s.absent, nil
}

func (s *reminderStoreStub) OpenSessionsOn(context.Context, time.Time) ([]models.AttendanceSession, error) {
	return s.open, nil
}

type notifyRecorder struct {
	sent []struct {
		userID int64
		kind   ReminderKind
	}
}

func (n *notifyRecorder) Notify(_ context.Context, userID int64, kind ReminderKind) error {
	n.sent = append(n.sent, struct {
		userID int64
		kind   ReminderKind
	}{userID, kind})
	return nil
}

func newScheduler(t *testing.T, store ReminderStore) (*ReminderScheduler, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tashkent")
	require.NoError(t, err)

	gate := calendar.NewGate(loc, []int{1, 2, 3, 4, 5})
	schedule := calendar.NewSchedule(gate,
		config.Clock{Hour: 8, Minute: 0},
		config.Clock{Hour: 17, Minute: 0},
		15)
	offsets := ReminderOffsets{
		MorningBefore:  15,
		LateAfter:      15,
		CheckoutBefore: 15,
		ForgottenAfter: 30,
	}
	return NewReminderScheduler(gate, schedule, store, &notifyRecorder{}, offsets, zap.NewNop()), loc
}

func TestNextOrdersRemindersThroughDay(t *testing.T) {
	s, loc := newScheduler(t, &reminderStoreStub{})

	// 2024-01-01 is a Monday.
	at := func(hour, minute int) time.Time {
		return time.Date(2024, 1, 1, hour, minute, 0, 0, loc)
	}
	cases := []struct {
		now      time.Time
		wantKind ReminderKind
		wantAt   time.Time
	}{
		{at(6, 0), ReminderMorning, at(7, 45)},
		{at(7, 45), ReminderLate, at(8, 15)}, // strictly after now
		{at(8, 0), ReminderLate, at(8, 15)},
		{at(9, 0), ReminderCheckout, at(16, 45)},
		{at(16, 50), ReminderForgotten, at(17, 30)},
	}
	for _, tc := range cases {
		kind, instant, ok := s.Next(tc.now)
		require.True(t, ok)
		assert.Equal(t, tc.wantKind, kind, "now=%v", tc.now)
		assert.True(t, instant.Equal(tc.wantAt), "now=%v got=%v want=%v", tc.now, instant, tc.wantAt)
	}
}

func TestNextSkipsWeekend(t *testing.T) {
	s, loc := newScheduler(t, &reminderStoreStub{})

	// Friday evening: next reminder is Monday morning.
	friday := time.Date(2024, 1, 5, 18, 0, 0, 0, loc)
	kind, instant, ok := s.Next(friday)

	require.True(t, ok)
	assert.Equal(t, ReminderMorning, kind)
	assert.True(t, instant.Equal(time.Date(2024, 1, 8, 7, 45, 0, 0, loc)), "got %v", instant)
}

func TestNextNoWorkdaysConfigured(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tashkent")
	require.NoError(t, err)
	gate := calendar.NewGate(loc, nil)
	schedule := calendar.NewSchedule(gate,
		config.Clock{Hour: 8, Minute: 0}, config.Clock{Hour: 17, Minute: 0}, 15)
	s := NewReminderScheduler(gate, schedule, &reminderStoreStub{}, &notifyRecorder{},
		ReminderOffsets{}, zap.NewNop())

	_, _, ok := s.Next(time.Date(2024, 1, 1, 6, 0, 0, 0, loc))
	assert.False(t, ok)
}

func TestFireMorningTargetsAbsentTeachers(t *testing.T) {
	store := &reminderStoreStub{absent: []models.Teacher{{UserID: 1}, {UserID: 2}}}
	s, loc := newScheduler(t, store)
	recorder := &notifyRecorder{}
	s.notifier = recorder

	s.fire(context.Background(), ReminderMorning, time.Date(2024, 1, 1, 7, 45, 0, 0, loc))

	require.Len(t, recorder.sent, 2)
	assert.Equal(t, int64(1), recorder.sent[0].userID)
	assert.Equal(t, ReminderMorning, recorder.sent[0].kind)
}

func TestFireForgottenTargetsOpenSessions(t *testing.T) {
	store := &reminderStoreStub{open: []models.AttendanceSession{{UserID: 7}}}
	s, loc := newScheduler(t, store)
	recorder := &notifyRecorder{}
	s.notifier = recorder

	s.fire(context.Background(), ReminderForgotten, time.Date(2024, 1, 1, 17, 30, 0, 0, loc))

	require.Len(t, recorder.sent, 1)
	assert.Equal(t, int64(7), recorder.sent[0].userID)
	assert.Equal(t, ReminderForgotten, recorder.sent[0].kind)
}
