package handlers

import (
	"net/http"
	"strconv"
	"time"

	"attendbot/internal/http/middleware"
	"attendbot/internal/service"
)

// NewTodayStatusHandler returns GET /attendance/today. The user comes from
// the validated token, never from the request body.
func NewTodayStatusHandler(reporting *service.Reporting) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
			return
		}

		session, err := reporting.TodayStatus(r.Context(), userID, time.Now().UTC())
		if err != nil {
			writeManagerError(w, err)
			return
		}
		if session == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": "not_started"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  session.Status,
			"session": session,
		})
	}
}

// NewHistoryHandler returns GET /attendance/history?days=N.
func NewHistoryHandler(reporting *service.Reporting) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
			return
		}

		days := 7
		if raw := r.URL.Query().Get("days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 || parsed > 92 {
				writeError(w, http.StatusBadRequest, "bad_request", "invalid days")
				return
			}
			days = parsed
		}

		sessions, err := reporting.History(r.Context(), userID, time.Now().UTC(), days)
		if err != nil {
			writeManagerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
	}
}
