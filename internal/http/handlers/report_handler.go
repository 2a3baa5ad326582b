package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"attendbot/internal/coordinator"
	"attendbot/internal/http/middleware"
	"attendbot/internal/service"
)

// ReportHandler holds the admin reporting endpoints.
type ReportHandler struct {
	reporting *service.Reporting
	coord     *coordinator.Coordinator
	logger    *zap.Logger
}

// NewReportHandler builds handler set.
func NewReportHandler(reporting *service.Reporting, coord *coordinator.Coordinator, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reporting: reporting, coord: coord, logger: logger}
}

func (h *ReportHandler) adminID(r *http.Request) int64 {
	id, _ := middleware.UserIDFromContext(r.Context())
	return id
}

func parseDate(r *http.Request, key string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return parsed, nil
}

// HandleDailyReport handles GET /admin/report?date=YYYY-MM-DD.
func (h *ReportHandler) HandleDailyReport(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r, "date", h.reporting.Today(time.Now().UTC()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	rows, err := h.reporting.DailyReport(r.Context(), date)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	h.reporting.RecordAdminAction(r.Context(), h.adminID(r), "viewed_daily_report", 0, date.Format("2006-01-02"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":     date.Format("2006-01-02"),
		"sessions": rows,
	})
}

// HandleStats handles GET /admin/stats?date=YYYY-MM-DD.
func (h *ReportHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r, "date", h.reporting.Today(time.Now().UTC()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	stats, err := h.reporting.DailyStats(r.Context(), date)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleExportCSV handles GET /admin/export.csv?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Defaults to the current week when no range is given.
func (h *ReportHandler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	weekFrom, weekTo := h.reporting.WeekRange(time.Now().UTC())
	from, err := parseDate(r, "from", weekFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	to, err := parseDate(r, "to", weekTo)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "bad_request", "to precedes from")
		return
	}

	data, err := h.reporting.ExportCSV(r.Context(), from, to)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	filename := fmt.Sprintf("attendance_%s_%s.csv", from.Format("2006-01-02"), to.Format("2006-01-02"))
	h.reporting.RecordAdminAction(r.Context(), h.adminID(r), "exported_csv", 0, filename)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleAdminLogs handles GET /admin/logs?limit=N.
func (h *ReportHandler) HandleAdminLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid limit")
			return
		}
		limit = parsed
	}

	logs, err := h.reporting.RecentAdminLogs(r.Context(), limit)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}

// HandleInstances handles GET /admin/instances: the live process instances
// visible during a rollover window.
func (h *ReportHandler) HandleInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := h.coord.LiveInstances(r.Context())
	if err != nil {
		h.logger.Warn("failed to list instances", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unavailable", "instance registry unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"this_instance": h.coord.InstanceID(),
		"instances":     instances,
	})
}
