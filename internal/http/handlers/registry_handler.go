package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"attendbot/internal/repository"
	"attendbot/internal/service"
)

// RegistryHandler holds the teacher registry endpoints invoked by the chat
// transport.
type RegistryHandler struct {
	registry *service.Registry
	tokens   *service.TokenService
	admins   service.AdminChecker
	logger   *zap.Logger
}

// NewRegistryHandler builds handler set.
func NewRegistryHandler(registry *service.Registry, tokens *service.TokenService, admins service.AdminChecker, logger *zap.Logger) *RegistryHandler {
	return &RegistryHandler{registry: registry, tokens: tokens, admins: admins, logger: logger}
}

type registerRequest struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Language    string `json:"language"`
}

// HandleRegister handles POST /users/register.
func (h *RegistryHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id is required")
		return
	}

	if err := h.registry.Register(r.Context(), service.RegisterInput{
		UserID:      req.UserID,
		Username:    req.Username,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Language:    req.Language,
	}); err != nil {
		h.logger.Error("register failed", zap.Int64("user_id", req.UserID), zap.Error(err))
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": "success"})
}

type preferencesRequest struct {
	UserID        int64   `json:"user_id"`
	Language      *string `json:"language,omitempty"`
	Notifications *bool   `json:"notifications,omitempty"`
}

// HandlePreferences handles PUT /users/preferences.
func (h *RegistryHandler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id is required")
		return
	}

	if req.Language != nil {
		if err := h.registry.SetLanguage(r.Context(), req.UserID, *req.Language); err != nil {
			h.preferencesError(w, req.UserID, err)
			return
		}
	}
	if req.Notifications != nil {
		if err := h.registry.SetNotifications(r.Context(), req.UserID, *req.Notifications); err != nil {
			h.preferencesError(w, req.UserID, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": "success"})
}

func (h *RegistryHandler) preferencesError(w http.ResponseWriter, userID int64, err error) {
	if errors.Is(err, repository.ErrTeacherNotFound) {
		writeError(w, http.StatusNotFound, "unknown_user", "user is not registered")
		return
	}
	h.logger.Error("preferences update failed", zap.Int64("user_id", userID), zap.Error(err))
	writeManagerError(w, err)
}

type tokenRequest struct {
	UserID int64 `json:"user_id"`
}

// HandleIssueToken handles POST /auth/token: the transport exchanges its API
// key plus a user id for a short-lived JWT. Role is resolved from the
// configured admin set.
func (h *RegistryHandler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id is required")
		return
	}

	role := service.RoleTeacher
	if h.admins.IsAdmin(req.UserID) {
		role = service.RoleAdmin
	}
	token, err := h.tokens.GenerateToken(req.UserID, role)
	if err != nil {
		h.logger.Error("token issue failed", zap.Int64("user_id", req.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "role": role})
}
