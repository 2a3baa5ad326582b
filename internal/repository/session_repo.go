package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"attendbot/internal/models"
)

const uniqueViolation = "23505"

// SessionRepository owns the attendance_sessions row lifecycle. All writes
// for a (user_id, session_date) key are serialized by the table's uniqueness
// constraint and guarded UPDATEs, so two live instances can write through
// separate pools without lost updates.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository returns repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// OpenSessionParams carries a validated check-in.
type OpenSessionParams struct {
	UserID        int64
	Date          time.Time
	At            time.Time
	Latitude      float64
	Longitude     float64
	CheckInStatus string
	LateMinutes   int
}

// OpenSession creates the user-day session row. The insert races through
// ON CONFLICT DO NOTHING: the loser gets no row back, re-reads the committed
// state and reports ErrAlreadyOpen or ErrAlreadyClosed.
func (r *SessionRepository) OpenSession(ctx context.Context, p OpenSessionParams) (string, error) {
	const query = `
		INSERT INTO attendance_sessions (
			id, user_id, session_date, status,
			check_in_at, check_in_lat, check_in_lon,
			check_in_status, late_minutes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (user_id, session_date) DO NOTHING
		RETURNING id
	`
	id := uuid.NewString()
	status := p.CheckInStatus
	if status == "" {
		status = models.CheckInOnTime
	}

	var returned string
	err := r.db.QueryRowContext(ctx, query,
		id,
		p.UserID,
		p.Date,
		models.SessionStatusOpen,
		p.At.UTC(),
		p.Latitude,
		p.Longitude,
		status,
		p.LateMinutes,
	).Scan(&returned)
	if err == nil {
		return returned, nil
	}
	if !errors.Is(err, sql.ErrNoRows) && !isUniqueViolation(err) {
		return "", err
	}

	existing, err := r.GetSession(ctx, p.UserID, p.Date)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return "", fmt.Errorf("repository: conflicting session vanished for user %d", p.UserID)
	}
	if existing.Status == models.SessionStatusClosed {
		return "", ErrAlreadyClosed
	}
	return "", ErrAlreadyOpen
}

// CloseSessionParams carries a validated check-out.
type CloseSessionParams struct {
	UserID    int64
	Date      time.Time
	At        time.Time
	Latitude  float64
	Longitude float64
}

// CloseSession finalizes the open session for the user-day. The UPDATE is
// guarded on status='open' and check-in ordering; zero affected rows means
// the committed state is re-read to pick the right conflict error.
func (r *SessionRepository) CloseSession(ctx context.Context, p CloseSessionParams) error {
	const query = `
		UPDATE attendance_sessions SET
			check_out_at = $3,
			check_out_lat = $4,
			check_out_lon = $5,
			total_hours = EXTRACT(EPOCH FROM ($3::timestamptz - check_in_at)) / 3600,
			status = $6,
			updated_at = NOW()
		WHERE user_id = $1 AND session_date = $2
		  AND status = $7
		  AND check_in_at <= $3
	`
	result, err := r.db.ExecContext(ctx, query,
		p.UserID,
		p.Date,
		p.At.UTC(),
		p.Latitude,
		p.Longitude,
		models.SessionStatusClosed,
		models.SessionStatusOpen,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	existing, err := r.GetSession(ctx, p.UserID, p.Date)
	if err != nil {
		return err
	}
	switch {
	case existing == nil:
		return ErrNoOpenSession
	case existing.Status == models.SessionStatusClosed:
		return ErrAlreadyClosed
	case existing.CheckInAt.After(p.At.UTC()):
		return ErrCheckOutBeforeCheckIn
	default:
		return fmt.Errorf("repository: close affected no rows for user %d", p.UserID)
	}
}

const sessionColumns = `
	id, user_id, session_date, status,
	check_in_at, check_in_lat, check_in_lon, check_in_status, late_minutes,
	check_out_at, check_out_lat, check_out_lon, total_hours,
	created_at, updated_at
`

// GetSession returns the user-day session, or nil when no row exists.
func (r *SessionRepository) GetSession(ctx context.Context, userID int64, date time.Time) (*models.AttendanceSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM attendance_sessions
		WHERE user_id = $1 AND session_date = $2
	`
	row := r.db.QueryRowContext(ctx, query, userID, date)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions returns the user's sessions in [from, to], ascending by date.
func (r *SessionRepository) ListSessions(ctx context.Context, userID int64, from, to time.Time) ([]models.AttendanceSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM attendance_sessions
		WHERE user_id = $1 AND session_date BETWEEN $2 AND $3
		ORDER BY session_date ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.AttendanceSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// ExportRange returns committed sessions across all users in [from, to],
// joined with teacher identity, ordered by date then check-in time.
func (r *SessionRepository) ExportRange(ctx context.Context, from, to time.Time) ([]models.ExportRow, error) {
	query := `
		SELECT
			s.id, s.user_id, s.session_date, s.status,
			s.check_in_at, s.check_in_lat, s.check_in_lon, s.check_in_status, s.late_minutes,
			s.check_out_at, s.check_out_lat, s.check_out_lon, s.total_hours,
			s.created_at, s.updated_at,
			t.username, t.first_name, t.last_name
		FROM attendance_sessions s
		JOIN teachers t ON s.user_id = t.user_id
		WHERE s.session_date BETWEEN $1 AND $2
		ORDER BY s.session_date ASC, s.check_in_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ExportRow
	for rows.Next() {
		var row models.ExportRow
		if err := rows.Scan(
			&row.ID,
			&row.UserID,
			&row.Date,
			&row.Status,
			&row.CheckInAt,
			&row.CheckInLat,
			&row.CheckInLon,
			&row.CheckInStatus,
			&row.LateMinutes,
			&row.CheckOutAt,
			&row.CheckOutLat,
			&row.CheckOutLon,
			&row.TotalHours,
			&row.CreatedAt,
			&row.UpdatedAt,
			&row.Username,
			&row.FirstName,
			&row.LastName,
		); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// OpenSessionsOn returns sessions still open for the given date, for the
// forgotten-checkout sweep.
func (r *SessionRepository) OpenSessionsOn(ctx context.Context, date time.Time) ([]models.AttendanceSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM attendance_sessions
		WHERE session_date = $1 AND status = $2
		ORDER BY check_in_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, date, models.SessionStatusOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.AttendanceSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// AbsentTeachers returns active teachers with notifications enabled who have
// no session row for the given date.
func (r *SessionRepository) AbsentTeachers(ctx context.Context, date time.Time) ([]models.Teacher, error) {
	const query = `
		SELECT t.user_id, t.username, t.first_name, t.last_name, t.phone_number,
		       t.language, t.is_admin, t.is_active, t.notifications_enabled,
		       t.created_at, t.updated_at
		FROM teachers t
		WHERE t.is_active = TRUE
		  AND t.notifications_enabled = TRUE
		  AND NOT EXISTS (
			SELECT 1 FROM attendance_sessions s
			WHERE s.user_id = t.user_id AND s.session_date = $1
		  )
		ORDER BY t.user_id
	`
	rows, err := r.db.QueryContext(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teachers []models.Teacher
	for rows.Next() {
		teacher, err := scanTeacher(rows)
		if err != nil {
			return nil, err
		}
		teachers = append(teachers, *teacher)
	}
	return teachers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.AttendanceSession, error) {
	var s models.AttendanceSession
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Date,
		&s.Status,
		&s.CheckInAt,
		&s.CheckInLat,
		&s.CheckInLon,
		&s.CheckInStatus,
		&s.LateMinutes,
		&s.CheckOutAt,
		&s.CheckOutLat,
		&s.CheckOutLon,
		&s.TotalHours,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
