package handlers

import (
	"context"
	"net/http"
	"time"

	"attendbot/internal/redisstore"
	"attendbot/internal/service"
)

// PresenceLister reads the cached open-session markers for a day.
type PresenceLister interface {
	ListDay(ctx context.Context, date time.Time) ([]redisstore.Presence, error)
}

// NewPresentHandler returns GET /admin/present: the cached view of who is
// checked in right now. Best-effort — the cache can lag committed state and
// the durable report endpoints remain the source of truth.
func NewPresentHandler(presence PresenceLister, reporting *service.Reporting) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := reporting.Today(time.Now().UTC())
		entries, err := presence.ListDay(r.Context(), date)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "unavailable", "presence cache unavailable")
			return
		}
		if entries == nil {
			entries = []redisstore.Presence{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"date":    date.Format("2006-01-02"),
			"present": entries,
		})
	}
}
