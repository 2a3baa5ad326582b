package models

import (
	"database/sql"
	"time"
)

// Session status values. A session is created open on the first valid
// check-in of the day and is closed exactly once. Closed is terminal.
const (
	SessionStatusOpen   = "open"
	SessionStatusClosed = "closed"
)

// Check-in punctuality values recorded against the configured work schedule.
const (
	CheckInOnTime = "on_time"
	CheckInLate   = "late"
)

// AttendanceSession represents one teacher's check-in/check-out pair for one
// calendar day in the school time zone.
type AttendanceSession struct {
	ID            string          `db:"id" json:"id"`
	UserID        int64           `db:"user_id" json:"user_id"`
	Date          time.Time       `db:"session_date" json:"date"`
	Status        string          `db:"status" json:"status"`
	CheckInAt     time.Time       `db:"check_in_at" json:"check_in_at"`
	CheckInLat    float64         `db:"check_in_lat" json:"check_in_lat"`
	CheckInLon    float64         `db:"check_in_lon" json:"check_in_lon"`
	CheckInStatus string          `db:"check_in_status" json:"check_in_status"`
	LateMinutes   int             `db:"late_minutes" json:"late_minutes"`
	CheckOutAt    sql.NullTime    `db:"check_out_at" json:"check_out_at,omitempty"`
	CheckOutLat   sql.NullFloat64 `db:"check_out_lat" json:"check_out_lat,omitempty"`
	CheckOutLon   sql.NullFloat64 `db:"check_out_lon" json:"check_out_lon,omitempty"`
	TotalHours    sql.NullFloat64 `db:"total_hours" json:"total_hours,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// ExportRow is an attendance session joined with teacher identity for
// reporting and CSV export.
type ExportRow struct {
	AttendanceSession
	Username  sql.NullString `db:"username" json:"username,omitempty"`
	FirstName string         `db:"first_name" json:"first_name"`
	LastName  sql.NullString `db:"last_name" json:"last_name,omitempty"`
}
