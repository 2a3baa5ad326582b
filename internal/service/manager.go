package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"attendbot/internal/calendar"
	"attendbot/internal/geo"
	"attendbot/internal/models"
	"attendbot/internal/redisstore"
	"attendbot/internal/repository"
)

// SessionStore is the mutation-side storage contract. The manager never
// touches rows directly; every transition goes through the store so the
// uniqueness constraint stays the sole arbiter between concurrent writers.
type SessionStore interface {
	OpenSession(ctx context.Context, p repository.OpenSessionParams) (string, error)
	CloseSession(ctx context.Context, p repository.CloseSessionParams) error
	GetSession(ctx context.Context, userID int64, date time.Time) (*models.AttendanceSession, error)
}

// WriteGate reports whether this instance currently takes write traffic.
type WriteGate interface {
	AcceptingWrites() bool
}

// PresenceCache mirrors committed open sessions for dashboards. Optional;
// failures are logged and ignored.
type PresenceCache interface {
	Save(ctx context.Context, date time.Time, p redisstore.Presence) error
	Delete(ctx context.Context, userID int64, date time.Time) error
}

// TransitionEvent describes a committed state transition for the live feed.
type TransitionEvent struct {
	Kind        string    `json:"kind"` // "check_in" | "check_out"
	SessionID   string    `json:"session_id"`
	UserID      int64     `json:"user_id"`
	Date        string    `json:"date"`
	At          time.Time `json:"at"`
	Late        bool      `json:"late"`
	LateMinutes int       `json:"late_minutes,omitempty"`
	TotalHours  float64   `json:"total_hours,omitempty"`
}

// FeedPublisher fans committed transitions out to live subscribers. Optional.
type FeedPublisher interface {
	Publish(event TransitionEvent)
}

// Manager orchestrates the per-user-day state machine
// NotStarted -> Open -> Closed. It is the only mutation API: each inbound
// event is admitted by the calendar gate and the geofence validator, then
// delegated to the store, which revalidates against committed storage rather
// than process memory.
type Manager struct {
	store    SessionStore
	gate     *calendar.Gate
	schedule *calendar.Schedule
	center   geo.Coordinates
	radius   float64
	writes   WriteGate
	presence PresenceCache
	feed     FeedPublisher
	logger   *zap.Logger
}

// NewManager builds the session manager. presence and feed may be nil.
func NewManager(
	store SessionStore,
	gate *calendar.Gate,
	schedule *calendar.Schedule,
	center geo.Coordinates,
	radiusMeters float64,
	writes WriteGate,
	presence PresenceCache,
	feed FeedPublisher,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		store:    store,
		gate:     gate,
		schedule: schedule,
		center:   center,
		radius:   radiusMeters,
		writes:   writes,
		presence: presence,
		feed:     feed,
		logger:   logger,
	}
}

// CheckInResult reports a committed check-in.
type CheckInResult struct {
	SessionID      string
	Date           time.Time
	At             time.Time
	DistanceMeters float64
	CheckInStatus  string
	LateMinutes    int
}

// CheckOutResult reports a committed check-out.
type CheckOutResult struct {
	SessionID      string
	Date           time.Time
	At             time.Time
	DistanceMeters float64
	TotalHours     float64
}

// RequestCheckIn validates and commits a check-in for the user at the given
// instant. Admission order: window, then geofence, then the store transition.
// Conflict errors from the store propagate unchanged, so a duplicate or
// retried check-in never silently succeeds twice.
func (m *Manager) RequestCheckIn(ctx context.Context, userID int64, coords geo.Coordinates, now time.Time) (*CheckInResult, error) {
	distance, err := m.admit(coords, now)
	if err != nil {
		return nil, err
	}

	date := m.gate.LocalDate(now)
	status, lateMinutes := m.schedule.Lateness(now)

	sessionID, err := m.store.OpenSession(ctx, repository.OpenSessionParams{
		UserID:        userID,
		Date:          date,
		At:            now,
		Latitude:      coords.Latitude,
		Longitude:     coords.Longitude,
		CheckInStatus: status,
		LateMinutes:   lateMinutes,
	})
	if err != nil {
		return nil, m.classify(err)
	}

	m.logger.Info("check-in committed",
		zap.Int64("user_id", userID),
		zap.String("session_id", sessionID),
		zap.String("status", status),
		zap.Int("late_minutes", lateMinutes),
		zap.String("location", geo.Format(coords)),
		zap.Float64("distance_m", distance))

	if m.presence != nil {
		if cacheErr := m.presence.Save(ctx, date, redisstore.Presence{
			SessionID: sessionID,
			UserID:    userID,
			CheckInAt: now.UTC(),
			Late:      status == models.CheckInLate,
		}); cacheErr != nil {
			m.logger.Warn("failed to cache presence", zap.Error(cacheErr))
		}
	}
	if m.feed != nil {
		m.feed.Publish(TransitionEvent{
			Kind:        "check_in",
			SessionID:   sessionID,
			UserID:      userID,
			Date:        date.Format("2006-01-02"),
			At:          now.UTC(),
			Late:        status == models.CheckInLate,
			LateMinutes: lateMinutes,
		})
	}

	return &CheckInResult{
		SessionID:      sessionID,
		Date:           date,
		At:             now.UTC(),
		DistanceMeters: distance,
		CheckInStatus:  status,
		LateMinutes:    lateMinutes,
	}, nil
}

// RequestCheckOut validates and commits a check-out. A missing open session
// is the common "forgot to check in" user error and surfaces distinctly as
// ErrNoOpenSession.
func (m *Manager) RequestCheckOut(ctx context.Context, userID int64, coords geo.Coordinates, now time.Time) (*CheckOutResult, error) {
	distance, err := m.admit(coords, now)
	if err != nil {
		return nil, err
	}

	date := m.gate.LocalDate(now)
	if err := m.store.CloseSession(ctx, repository.CloseSessionParams{
		UserID:    userID,
		Date:      date,
		At:        now,
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
	}); err != nil {
		return nil, m.classify(err)
	}

	session, err := m.store.GetSession(ctx, userID, date)
	if err != nil {
		// The close already committed; only the summary read failed. Report
		// success without totals, a retry observes AlreadyClosed.
		m.logger.Warn("failed to read back closed session", zap.Error(err))
		session = nil
	}
	var totalHours float64
	sessionID := ""
	if session != nil {
		sessionID = session.ID
		if session.TotalHours.Valid {
			totalHours = session.TotalHours.Float64
		}
	}

	m.logger.Info("check-out committed",
		zap.Int64("user_id", userID),
		zap.String("session_id", sessionID),
		zap.Float64("total_hours", totalHours),
		zap.Float64("distance_m", distance))

	if m.presence != nil {
		if cacheErr := m.presence.Delete(ctx, userID, date); cacheErr != nil {
			m.logger.Warn("failed to drop presence", zap.Error(cacheErr))
		}
	}
	if m.feed != nil {
		m.feed.Publish(TransitionEvent{
			Kind:       "check_out",
			SessionID:  sessionID,
			UserID:     userID,
			Date:       date.Format("2006-01-02"),
			At:         now.UTC(),
			TotalHours: totalHours,
		})
	}

	return &CheckOutResult{
		SessionID:      sessionID,
		Date:           date,
		At:             now.UTC(),
		DistanceMeters: distance,
		TotalHours:     totalHours,
	}, nil
}

// admit runs the shared gates and returns the measured distance.
func (m *Manager) admit(coords geo.Coordinates, now time.Time) (float64, error) {
	if m.writes != nil && !m.writes.AcceptingWrites() {
		return 0, ErrNotAccepting
	}
	if !m.gate.IsEligible(now) {
		return 0, ErrOutsideWindow
	}
	// (0, 0) marks a GPS failure, never a real position.
	if !geo.Reasonable(coords) {
		return 0, geo.ErrInvalidCoordinates
	}
	result, err := geo.Validate(m.center, coords, m.radius)
	if err != nil {
		return 0, err
	}
	if !result.Within {
		return 0, &OutOfRangeError{
			DistanceMeters: result.DistanceMeters,
			RadiusMeters:   m.radius,
		}
	}
	return result.DistanceMeters, nil
}

// classify passes state-conflict errors through and wraps everything else
// as a storage failure.
func (m *Manager) classify(err error) error {
	switch {
	case errors.Is(err, repository.ErrAlreadyOpen),
		errors.Is(err, repository.ErrAlreadyClosed),
		errors.Is(err, repository.ErrNoOpenSession),
		errors.Is(err, repository.ErrCheckOutBeforeCheckIn):
		return err
	default:
		return storageErr(err)
	}
}
