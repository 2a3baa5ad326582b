package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"attendbot/internal/repository"
	"attendbot/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "error": message})
}

// writeManagerError maps the session manager's error taxonomy onto the wire
// codes the chat transport renders in the user's language.
func writeManagerError(w http.ResponseWriter, err error) {
	var outOfRange *service.OutOfRangeError
	switch {
	case errors.As(err, &outOfRange):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"code":            "out_of_range",
			"error":           outOfRange.Error(),
			"distance_meters": outOfRange.DistanceMeters,
			"radius_meters":   outOfRange.RadiusMeters,
		})
	case errors.Is(err, service.ErrOutsideWindow):
		writeError(w, http.StatusUnprocessableEntity, "outside_window", "attendance is recorded on workdays only")
	case errors.Is(err, service.ErrInvalidCoordinates):
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "coordinates are out of range")
	case errors.Is(err, service.ErrAlreadyOpen):
		writeError(w, http.StatusConflict, "already_open", "already checked in today")
	case errors.Is(err, service.ErrAlreadyClosed):
		writeError(w, http.StatusConflict, "already_closed", "already checked out today")
	case errors.Is(err, service.ErrNoOpenSession):
		writeError(w, http.StatusConflict, "no_open_session", "no check-in recorded today")
	case errors.Is(err, repository.ErrCheckOutBeforeCheckIn):
		writeError(w, http.StatusConflict, "check_out_before_check_in", "check-out precedes check-in")
	case errors.Is(err, service.ErrNotAccepting):
		writeError(w, http.StatusServiceUnavailable, "draining", "instance is shutting down, retry")
	case errors.Is(err, service.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "storage unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
