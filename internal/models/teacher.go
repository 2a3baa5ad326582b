package models

import (
	"database/sql"
	"time"
)

// Teacher is a registered bot user. The user id is owned by the chat
// transport's identity system and treated as opaque here.
type Teacher struct {
	UserID               int64          `db:"user_id" json:"user_id"`
	Username             sql.NullString `db:"username" json:"username,omitempty"`
	FirstName            string         `db:"first_name" json:"first_name"`
	LastName             sql.NullString `db:"last_name" json:"last_name,omitempty"`
	PhoneNumber          sql.NullString `db:"phone_number" json:"phone_number,omitempty"`
	Language             string         `db:"language" json:"language"`
	IsAdmin              bool           `db:"is_admin" json:"is_admin"`
	IsActive             bool           `db:"is_active" json:"is_active"`
	NotificationsEnabled bool           `db:"notifications_enabled" json:"notifications_enabled"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// AdminLog records an administrative action for auditing.
type AdminLog struct {
	ID           int64          `db:"id" json:"id"`
	AdminUserID  int64          `db:"admin_user_id" json:"admin_user_id"`
	Action       string         `db:"action" json:"action"`
	TargetUserID sql.NullInt64  `db:"target_user_id" json:"target_user_id,omitempty"`
	Details      sql.NullString `db:"details" json:"details,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}
