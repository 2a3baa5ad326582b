package repository

import (
	"context"
	"database/sql"
	"errors"

	"attendbot/internal/models"
)

// ErrTeacherNotFound indicates an unknown user id.
var ErrTeacherNotFound = errors.New("repository: teacher not found")

// TeacherRepository handles the teacher registry.
type TeacherRepository struct {
	db *sql.DB
}

// NewTeacherRepository returns repository.
func NewTeacherRepository(db *sql.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// UpsertParams carries a profile snapshot from the chat transport.
type UpsertParams struct {
	UserID      int64
	Username    string
	FirstName   string
	LastName    string
	PhoneNumber string
	Language    string
	IsAdmin     bool
}

// Upsert creates the teacher or refreshes the profile fields.
func (r *TeacherRepository) Upsert(ctx context.Context, p UpsertParams) error {
	const query = `
		INSERT INTO teachers (
			user_id, username, first_name, last_name,
			phone_number, language, is_admin, updated_at
		) VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone_number = EXCLUDED.phone_number,
			language = EXCLUDED.language,
			is_admin = EXCLUDED.is_admin,
			updated_at = NOW()
	`
	language := p.Language
	if language == "" {
		language = "uz"
	}
	_, err := r.db.ExecContext(ctx, query,
		p.UserID, p.Username, p.FirstName, p.LastName, p.PhoneNumber, language, p.IsAdmin)
	return err
}

const teacherColumns = `
	user_id, username, first_name, last_name, phone_number,
	language, is_admin, is_active, notifications_enabled,
	created_at, updated_at
`

// GetByID returns the teacher, or ErrTeacherNotFound.
func (r *TeacherRepository) GetByID(ctx context.Context, userID int64) (*models.Teacher, error) {
	query := `SELECT ` + teacherColumns + ` FROM teachers WHERE user_id = $1`
	teacher, err := scanTeacher(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTeacherNotFound
	}
	if err != nil {
		return nil, err
	}
	return teacher, nil
}

// SetLanguage updates the teacher's preferred language.
func (r *TeacherRepository) SetLanguage(ctx context.Context, userID int64, language string) error {
	const query = `
		UPDATE teachers SET language = $2, updated_at = NOW() WHERE user_id = $1
	`
	return r.execExpectingRow(ctx, query, userID, language)
}

// SetNotifications toggles reminder delivery for the teacher.
func (r *TeacherRepository) SetNotifications(ctx context.Context, userID int64, enabled bool) error {
	const query = `
		UPDATE teachers SET notifications_enabled = $2, updated_at = NOW() WHERE user_id = $1
	`
	return r.execExpectingRow(ctx, query, userID, enabled)
}

// SetActive marks the teacher active or inactive.
func (r *TeacherRepository) SetActive(ctx context.Context, userID int64, active bool) error {
	const query = `
		UPDATE teachers SET is_active = $2, updated_at = NOW() WHERE user_id = $1
	`
	return r.execExpectingRow(ctx, query, userID, active)
}

// AllActive returns all active teachers ordered by id.
func (r *TeacherRepository) AllActive(ctx context.Context) ([]models.Teacher, error) {
	query := `SELECT ` + teacherColumns + ` FROM teachers WHERE is_active = TRUE ORDER BY user_id`
	rows, err := r.db.QueryContext(ctx, query)
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

func (r *TeacherRepository) execExpectingRow(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTeacherNotFound
	}
	return nil
}

func scanTeacher(row rowScanner) (*models.Teacher, error) {
	var t models.Teacher
	if err := row.Scan(
		&t.UserID,
		&t.Username,
		&t.FirstName,
		&t.LastName,
		&t.PhoneNumber,
		&t.Language,
		&t.IsAdmin,
		&t.IsActive,
		&t.NotificationsEnabled,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}
