package handlers

import (
	"net/http"

	"attendbot/internal/coordinator"
)

// NewHealthHandler returns GET /health. The payload exposes the single
// contract the probe needs: whether shared storage is reachable from this
// instance.
func NewHealthHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !coord.StorageHealthy(r.Context()) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":  "degraded",
				"storage": false,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"storage": true,
		})
	}
}

// NewReadyHandler returns GET /ready. Returns 503 once draining starts so
// the balancer moves traffic to the replacement instance during a rollover.
func NewReadyHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !coord.AcceptingWrites() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
