package repository

import (
	"context"
	"database/sql"

	"attendbot/internal/models"
)

// AdminLogRepository records administrative actions for auditing.
type AdminLogRepository struct {
	db *sql.DB
}

// NewAdminLogRepository returns repository.
func NewAdminLogRepository(db *sql.DB) *AdminLogRepository {
	return &AdminLogRepository{db: db}
}

// Log appends an admin action. targetUserID of zero means no target.
func (r *AdminLogRepository) Log(ctx context.Context, adminUserID int64, action string, targetUserID int64, details string) error {
	const query = `
		INSERT INTO admin_logs (admin_user_id, action, target_user_id, details)
		VALUES ($1, $2, NULLIF($3, 0), NULLIF($4, ''))
	`
	_, err := r.db.ExecContext(ctx, query, adminUserID, action, targetUserID, details)
	return err
}

// Recent returns the latest admin actions, newest first.
func (r *AdminLogRepository) Recent(ctx context.Context, limit int) ([]models.AdminLog, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, admin_user_id, action, target_user_id, details, created_at
		FROM admin_logs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.AdminLog
	for rows.Next() {
		var entry models.AdminLog
		if err := rows.Scan(
			&entry.ID,
			&entry.AdminUserID,
			&entry.Action,
			&entry.TargetUserID,
			&entry.Details,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
