package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attendbot/internal/calendar"
	"attendbot/internal/config"
	"attendbot/internal/geo"
	"attendbot/internal/models"
	"attendbot/internal/redisstore"
	"attendbot/internal/repository"
)

var (
	schoolCenter = geo.Coordinates{Latitude: 41.2995, Longitude: 69.2401}
	onCampus     = schoolCenter
	offCampus    = geo.Coordinates{Latitude: 41.3005, Longitude: 69.2401} // ~111m north
)

// memStore replays the storage contract in memory: one row per (user, date),
// open-once and close-once enforced against the recorded state.
type memStore struct {
	sessions map[string]*models.AttendanceSession
	nextID   int
	failWith error
	getErr   error
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*models.AttendanceSession)}
}

func storeKey(userID int64, date time.Time) string {
	return fmt.Sprintf("%d|%s", userID, date.Format("2006-01-02"))
}

func (s *memStore) OpenSession(_ context.Context, p repository.OpenSessionParams) (string, error) {
	if s.failWith != nil {
		return "", s.failWith
	}
	if existing, ok := s.sessions[storeKey(p.UserID, p.Date)]; ok {
		if existing.Status == models.SessionStatusOpen {
			return "", repository.ErrAlreadyOpen
		}
		return "", repository.ErrAlreadyClosed
	}
	s.nextID++
	session := &models.AttendanceSession{
		ID:            fmt.Sprintf("session-%d", s.nextID),
		UserID:        p.UserID,
		Date:          p.Date,
		Status:        models.SessionStatusOpen,
		CheckInAt:     p.At,
		CheckInLat:    p.Latitude,
		CheckInLon:    p.Longitude,
		CheckInStatus: p.CheckInStatus,
		LateMinutes:   p.LateMinutes,
	}
	s.sessions[storeKey(p.UserID, p.Date)] = session
	return session.ID, nil
}

func (s *memStore) CloseSession(_ context.Context, p repository.CloseSessionParams) error {
	if s.failWith != nil {
		return s.failWith
	}
	session, ok := s.sessions[storeKey(p.UserID, p.Date)]
	if !ok {
		return repository.ErrNoOpenSession
	}
	if session.Status == models.SessionStatusClosed {
		return repository.ErrAlreadyClosed
	}
	if p.At.Before(session.CheckInAt) {
		return repository.ErrCheckOutBeforeCheckIn
	}
	session.Status = models.SessionStatusClosed
	session.CheckOutAt.Valid = true
	session.CheckOutAt.Time = p.At
	session.TotalHours.Valid = true
	session.TotalHours.Float64 = p.At.Sub(session.CheckInAt).Hours()
	return nil
}

func (s *memStore) GetSession(_ context.Context, userID int64, date time.Time) (*models.AttendanceSession, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	if s.getErr != nil {
		return nil, s.getErr
	}
	session, ok := s.sessions[storeKey(userID, date)]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

type gateStub struct{ accepting bool }

func (g gateStub) AcceptingWrites() bool { return g.accepting }

type feedRecorder struct{ events []TransitionEvent }

func (f *feedRecorder) Publish(event TransitionEvent) { f.events = append(f.events, event) }

type presenceStub struct {
	saves   int
	deletes int
	err     error
}

func (p *presenceStub) Save(context.Context, time.Time, redisstore.Presence) error {
	p.saves++
	return p.err
}

func (p *presenceStub) Delete(context.Context, int64, time.Time) error {
	p.deletes++
	return p.err
}

type managerFixture struct {
	manager  *Manager
	store    *memStore
	feed     *feedRecorder
	presence *presenceStub
	loc      *time.Location
}

func newFixture(t *testing.T) *managerFixture {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tashkent")
	require.NoError(t, err)

	gate := calendar.NewGate(loc, []int{1, 2, 3, 4, 5})
	schedule := calendar.NewSchedule(gate,
		config.Clock{Hour: 8, Minute: 0},
		config.Clock{Hour: 17, Minute: 0},
		15)

	store := newMemStore()
	feed := &feedRecorder{}
	presence := &presenceStub{}
	manager := NewManager(store, gate, schedule, schoolCenter, 50,
		gateStub{accepting: true}, presence, feed, zap.NewNop())

	return &managerFixture{
		manager:  manager,
		store:    store,
		feed:     feed,
		presence: presence,
		loc:      loc,
	}
}

// monday returns a workday instant at the given local wall clock.
func (f *managerFixture) monday(hour, minute int) time.Time {
	return time.Date(2024, 1, 1, hour, minute, 0, 0, f.loc)
}

func TestCheckInOnTime(t *testing.T) {
	f := newFixture(t)

	result, err := f.manager.RequestCheckIn(context.Background(), 42, onCampus, f.monday(8, 5))
	require.NoError(t, err)

	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), result.Date)
	assert.Equal(t, models.CheckInOnTime, result.CheckInStatus)
	assert.Zero(t, result.LateMinutes)

	require.Len(t, f.feed.events, 1)
	assert.Equal(t, "check_in", f.feed.events[0].Kind)
	assert.False(t, f.feed.events[0].Late)
	assert.Equal(t, 1, f.presence.saves)
}

func TestCheckInLate(t *testing.T) {
	f := newFixture(t)

	result, err := f.manager.RequestCheckIn(context.Background(), 42, onCampus, f.monday(8, 40))
	require.NoError(t, err)

	// 08:40 is 25 minutes past the 08:15 grace deadline.
	assert.Equal(t, models.CheckInLate, result.CheckInStatus)
	assert.Equal(t, 25, result.LateMinutes)

	require.Len(t, f.feed.events, 1)
	assert.True(t, f.feed.events[0].Late)
	assert.Equal(t, 25, f.feed.events[0].LateMinutes)
}

func TestCheckInOutsideWindow(t *testing.T) {
	f := newFixture(t)

	saturday := time.Date(2024, 1, 6, 10, 0, 0, 0, f.loc)
	_, err := f.manager.RequestCheckIn(context.Background(), 42, onCampus, saturday)

	assert.ErrorIs(t, err, ErrOutsideWindow)
	assert.Empty(t, f.store.sessions, "rejected request must not reach storage")
}

func TestCheckInOutOfRange(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.RequestCheckIn(context.Background(), 42, offCampus, f.monday(8, 5))

	assert.ErrorIs(t, err, ErrOutOfRange)
	var rangeErr *OutOfRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Greater(t, rangeErr.DistanceMeters, 50.0)
	assert.Equal(t, 50.0, rangeErr.RadiusMeters)
	assert.Contains(t, rangeErr.Error(), "away")
	assert.Empty(t, f.store.sessions)
}

func TestCheckInInvalidCoordinates(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.RequestCheckIn(context.Background(), 42,
		geo.Coordinates{Latitude: 95, Longitude: 0}, f.monday(8, 5))

	assert.ErrorIs(t, err, ErrInvalidCoordinates)
	assert.Empty(t, f.store.sessions)
}

func TestCheckInRejectsNullIsland(t *testing.T) {
	f := newFixture(t)

	// (0, 0) is a GPS failure marker and must not reach the distance check.
	_, err := f.manager.RequestCheckIn(context.Background(), 42,
		geo.Coordinates{Latitude: 0, Longitude: 0}, f.monday(8, 5))

	assert.ErrorIs(t, err, ErrInvalidCoordinates)
	assert.NotErrorIs(t, err, ErrOutOfRange)
	assert.Empty(t, f.store.sessions)
}

func TestCheckInWhileDraining(t *testing.T) {
	f := newFixture(t)
	f.manager.writes = gateStub{accepting: false}

	_, err := f.manager.RequestCheckIn(context.Background(), 42, onCampus, f.monday(8, 5))
	assert.ErrorIs(t, err, ErrNotAccepting)

	_, err = f.manager.RequestCheckOut(context.Background(), 42, onCampus, f.monday(17, 0))
	assert.ErrorIs(t, err, ErrNotAccepting)
	assert.Empty(t, f.store.sessions)
}

func TestDuplicateCheckIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.RequestCheckIn(ctx, 42, onCampus, f.monday(8, 5))
	require.NoError(t, err)

	_, err = f.manager.RequestCheckIn(ctx, 42, onCampus, f.monday(9, 0))
	assert.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestCheckInAfterClosedDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.RequestCheckIn(ctx, 42, onCampus, f.monday(8, 5))
	require.NoError(t, err)
	_, err = f.manager.RequestCheckOut(ctx, 42, onCampus, f.monday(17, 0))
	require.NoError(t, err)

	_, err = f.manager.RequestCheckIn(ctx, 42, onCampus, f.monday(18, 0))
	assert.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestCheckOutWithoutCheckIn(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.RequestCheckOut(context.Background(), 42, onCampus, f.monday(17, 0))
	assert.ErrorIs(t, err, ErrNoOpenSession)
}

func TestCheckOutHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in, err := f.manager.RequestCheckIn(ctx, 42, onCampus, f.monday(8, 0))
	require.NoError(t, err)

	out, err := f.manager.RequestCheckOut(ctx, 42, onCampus, f.monday(17, 0))
	require.NoError(t, err)

	assert.Equal(t, in.SessionID, out.SessionID)
	assert.InDelta(t, 9.0, out.TotalHours, 1e-9)
	assert.Equal(t, 1, f.presence.deletes)

	require.Len(t, f.feed.events, 2)
	assert.Equal(t, "check_out", f.feed.events[1].Kind)
	assert.InDelta(t, 9.0, f.feed.events[1].TotalHours, 1e-9)
}

func TestDoubleCheckOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.RequestCheckIn(ctx, 42, onCampus, f.monday(8, 0))
	require.NoError(t, err)
	_, err = f.manager.RequestCheckOut(ctx, 42, onCampus, f.monday(17, 0))
	require.NoError(t, err)

	_, err = f.manager.RequestCheckOut(ctx, 42, onCampus, f.monday(17, 30))
	assert.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestCheckOutBeforeCheckIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.RequestCheckIn(ctx, 42, onCampus, f.monday(9, 0))
	require.NoError(t, err)

	_, err = f.manager.RequestCheckOut(ctx, 42, onCampus, f.monday(8, 0))
	assert.ErrorIs(t, err, repository.ErrCheckOutBeforeCheckIn)
}

func TestNewDayNewSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.RequestCheckIn(ctx, 42, onCampus, f.monday(8, 0))
	require.NoError(t, err)
	_, err = f.manager.RequestCheckOut(ctx, 42, onCampus, f.monday(17, 0))
	require.NoError(t, err)

	tuesday := time.Date(2024, 1, 2, 8, 0, 0, 0, f.loc)
	result, err := f.manager.RequestCheckIn(ctx, 42, onCampus, tuesday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), result.Date)
}

func TestIndependentUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.RequestCheckIn(ctx, 1, onCampus, f.monday(8, 0))
	require.NoError(t, err)
	_, err = f.manager.RequestCheckIn(ctx, 2, onCampus, f.monday(8, 5))
	require.NoError(t, err)

	_, err = f.manager.RequestCheckOut(ctx, 1, onCampus, f.monday(17, 0))
	require.NoError(t, err)

	session, err := f.store.GetSession(ctx, 2, f.manager.gate.LocalDate(f.monday(8, 5)))
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, models.SessionStatusOpen, session.Status)
}

func TestStorageFailureWrapped(t *testing.T) {
	f := newFixture(t)
	f.store.failWith = errors.New("connection refused")

	_, err := f.manager.RequestCheckIn(context.Background(), 42, onCampus, f.monday(8, 5))
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrAlreadyOpen)
}

func TestCheckOutSucceedsWhenReadBackFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.RequestCheckIn(ctx, 42, onCampus, f.monday(8, 0))
	require.NoError(t, err)

	// The close commits; only the summary re-read fails. The transition is
	// durable, so the result reports success without totals.
	f.store.getErr = errors.New("connection reset")
	out, err := f.manager.RequestCheckOut(ctx, 42, onCampus, f.monday(17, 0))
	require.NoError(t, err)
	assert.Empty(t, out.SessionID)
	assert.Zero(t, out.TotalHours)

	f.store.getErr = nil
	session, err := f.store.GetSession(ctx, 42, f.manager.gate.LocalDate(f.monday(17, 0)))
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, models.SessionStatusClosed, session.Status)
}

func TestPresenceFailureDoesNotBlockCheckIn(t *testing.T) {
	f := newFixture(t)
	f.presence.err = errors.New("redis down")

	_, err := f.manager.RequestCheckIn(context.Background(), 42, onCampus, f.monday(8, 5))
	assert.NoError(t, err, "presence cache is advisory only")
}
