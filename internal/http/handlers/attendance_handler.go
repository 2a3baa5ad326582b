package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"attendbot/internal/geo"
	"attendbot/internal/service"
)

// AttendanceHandler holds the check-in/check-out endpoints invoked by the
// chat transport.
type AttendanceHandler struct {
	manager *service.Manager
	logger  *zap.Logger
}

// NewAttendanceHandler builds handler set.
func NewAttendanceHandler(manager *service.Manager, logger *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{manager: manager, logger: logger}
}

type attendanceRequest struct {
	UserID    int64     `json:"user_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

func (r attendanceRequest) coords() geo.Coordinates {
	return geo.Coordinates{Latitude: r.Latitude, Longitude: r.Longitude}
}

func (r attendanceRequest) at() time.Time {
	if r.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return r.Timestamp
}

// HandleCheckIn handles POST /attendance/check-in.
func (h *AttendanceHandler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id is required")
		return
	}

	result, err := h.manager.RequestCheckIn(r.Context(), req.UserID, req.coords(), req.at())
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code":            "success",
		"session_id":      result.SessionID,
		"date":            result.Date.Format("2006-01-02"),
		"checked_in_at":   result.At,
		"distance_meters": result.DistanceMeters,
		"check_in_status": result.CheckInStatus,
		"late_minutes":    result.LateMinutes,
	})
}

// HandleCheckOut handles POST /attendance/check-out.
func (h *AttendanceHandler) HandleCheckOut(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id is required")
		return
	}

	result, err := h.manager.RequestCheckOut(r.Context(), req.UserID, req.coords(), req.at())
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code":            "success",
		"session_id":      result.SessionID,
		"date":            result.Date.Format("2006-01-02"),
		"checked_out_at":  result.At,
		"distance_meters": result.DistanceMeters,
		"total_hours":     result.TotalHours,
	})
}
