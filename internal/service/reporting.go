package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"attendbot/internal/calendar"
	"attendbot/internal/models"
)

// SessionReader is the read-side storage contract. Reads reflect committed
// state only; no dirty rows ever reach a report.
type SessionReader interface {
	GetSession(ctx context.Context, userID int64, date time.Time) (*models.AttendanceSession, error)
	ListSessions(ctx context.Context, userID int64, from, to time.Time) ([]models.AttendanceSession, error)
	ExportRange(ctx context.Context, from, to time.Time) ([]models.ExportRow, error)
}

// TeacherReader lists the registry for statistics.
type TeacherReader interface {
	AllActive(ctx context.Context) ([]models.Teacher, error)
}

// AuditLog records admin actions.
type AuditLog interface {
	Log(ctx context.Context, adminUserID int64, action string, targetUserID int64, details string) error
	Recent(ctx context.Context, limit int) ([]models.AdminLog, error)
}

// Reporting serves the read API: today status, history, admin reports,
// statistics and CSV export.
type Reporting struct {
	sessions SessionReader
	teachers TeacherReader
	audit    AuditLog
	gate     *calendar.Gate
	logger   *zap.Logger
}

// NewReporting builds the reporting service. audit may be nil.
func NewReporting(sessions SessionReader, teachers TeacherReader, audit AuditLog, gate *calendar.Gate, logger *zap.Logger) *Reporting {
	return &Reporting{
		sessions: sessions,
		teachers: teachers,
		audit:    audit,
		gate:     gate,
		logger:   logger,
	}
}

// Today returns the current school-day date for the instant.
func (r *Reporting) Today(now time.Time) time.Time {
	return r.gate.LocalDate(now)
}

// TodayStatus returns the user's session for the current school day, nil
// when not started.
func (r *Reporting) TodayStatus(ctx context.Context, userID int64, now time.Time) (*models.AttendanceSession, error) {
	session, err := r.sessions.GetSession(ctx, userID, r.gate.LocalDate(now))
	if err != nil {
		return nil, storageErr(err)
	}
	return session, nil
}

// History returns the user's sessions for the last `days` school days,
// ascending by date.
func (r *Reporting) History(ctx context.Context, userID int64, now time.Time, days int) ([]models.AttendanceSession, error) {
	if days <= 0 {
		days = 7
	}
	to := r.gate.LocalDate(now)
	from := to.AddDate(0, 0, -(days - 1))
	sessions, err := r.sessions.ListSessions(ctx, userID, from, to)
	if err != nil {
		return nil, storageErr(err)
	}
	return sessions, nil
}

// DailyReport returns all sessions for one date, joined with teacher names.
func (r *Reporting) DailyReport(ctx context.Context, date time.Time) ([]models.ExportRow, error) {
	rows, err := r.sessions.ExportRange(ctx, date, date)
	if err != nil {
		return nil, storageErr(err)
	}
	return rows, nil
}

// WeekRange returns Monday through the current day for the instant's week.
func (r *Reporting) WeekRange(now time.Time) (time.Time, time.Time) {
	to := r.gate.LocalDate(now)
	offset := (int(to.Weekday()) + 6) % 7 // days since Monday
	return to.AddDate(0, 0, -offset), to
}

// Stats summarizes one date against the active registry.
type Stats struct {
	Date       string `json:"date"`
	Active     int    `json:"active_teachers"`
	CheckedIn  int    `json:"checked_in"`
	CheckedOut int    `json:"checked_out"`
	Late       int    `json:"late"`
	Absent     int    `json:"absent"`
}

// DailyStats computes attendance counts for the date.
func (r *Reporting) DailyStats(ctx context.Context, date time.Time) (*Stats, error) {
	rows, err := r.sessions.ExportRange(ctx, date, date)
	if err != nil {
		return nil, storageErr(err)
	}
	teachers, err := r.teachers.AllActive(ctx)
	if err != nil {
		return nil, storageErr(err)
	}

	stats := &Stats{
		Date:   date.Format("2006-01-02"),
		Active: len(teachers),
	}
	for _, row := range rows {
		stats.CheckedIn++
		if row.Status == models.SessionStatusClosed {
			stats.CheckedOut++
		}
		if row.CheckInStatus == models.CheckInLate {
			stats.Late++
		}
	}
	if stats.Absent = stats.Active - stats.CheckedIn; stats.Absent < 0 {
		stats.Absent = 0
	}
	return stats, nil
}

// ExportCSV renders the date range as CSV for admin download. Timestamps are
// reported in the school time zone.
func (r *Reporting) ExportCSV(ctx context.Context, from, to time.Time) ([]byte, error) {
	rows, err := r.sessions.ExportRange(ctx, from, to)
	if err != nil {
		return nil, storageErr(err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"date", "user_id", "name", "username",
		"check_in", "check_in_status", "late_minutes",
		"check_out", "total_hours", "status",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	loc := r.gate.Location()
	for _, row := range rows {
		record := []string{
			row.Date.Format("2006-01-02"),
			strconv.FormatInt(row.UserID, 10),
			fullName(row),
			row.Username.String,
			row.CheckInAt.In(loc).Format("15:04:05"),
			row.CheckInStatus,
			strconv.Itoa(row.LateMinutes),
			"",
			"",
			row.Status,
		}
		if row.CheckOutAt.Valid {
			record[7] = row.CheckOutAt.Time.In(loc).Format("15:04:05")
		}
		if row.TotalHours.Valid {
			record[8] = fmt.Sprintf("%.2f", row.TotalHours.Float64)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RecordAdminAction appends to the audit log; failures are logged, not fatal.
func (r *Reporting) RecordAdminAction(ctx context.Context, adminID int64, action string, targetUserID int64, details string) {
	if r.audit == nil {
		return
	}
	if err := r.audit.Log(ctx, adminID, action, targetUserID, details); err != nil {
		r.logger.Warn("failed to record admin action",
			zap.Int64("admin_id", adminID),
			zap.String("action", action),
			zap.Error(err))
	}
}

// RecentAdminLogs lists the newest audit entries.
func (r *Reporting) RecentAdminLogs(ctx context.Context, limit int) ([]models.AdminLog, error) {
	if r.audit == nil {
		return nil, nil
	}
	logs, err := r.audit.Recent(ctx, limit)
	if err != nil {
		return nil, storageErr(err)
	}
	return logs, nil
}

func fullName(row models.ExportRow) string {
	if row.LastName.Valid && row.LastName.String != "" {
		return row.FirstName + " " + row.LastName.String
	}
	return row.FirstName
}
