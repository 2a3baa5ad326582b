package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"attendbot/internal/models"
	"attendbot/internal/repository"
)

// TeacherRegistry is the registry storage contract.
type TeacherRegistry interface {
	Upsert(ctx context.Context, p repository.UpsertParams) error
	GetByID(ctx context.Context, userID int64) (*models.Teacher, error)
	SetLanguage(ctx context.Context, userID int64, language string) error
	SetNotifications(ctx context.Context, userID int64, enabled bool) error
	SetActive(ctx context.Context, userID int64, active bool) error
}

// AdminChecker resolves the configured admin set.
type AdminChecker interface {
	IsAdmin(userID int64) bool
}

// Registry maintains teacher profiles. Admin status comes from configuration
// at registration time, not from any ambient state.
type Registry struct {
	teachers TeacherRegistry
	admins   AdminChecker
	logger   *zap.Logger
}

// NewRegistry builds the registry service.
func NewRegistry(teachers TeacherRegistry, admins AdminChecker, logger *zap.Logger) *Registry {
	return &Registry{teachers: teachers, admins: admins, logger: logger}
}

// RegisterInput is the profile snapshot delivered by the chat transport.
type RegisterInput struct {
	UserID      int64
	Username    string
	FirstName   string
	LastName    string
	PhoneNumber string
	Language    string
}

// Register creates or refreshes the teacher profile.
func (r *Registry) Register(ctx context.Context, input RegisterInput) error {
	if input.UserID == 0 {
		return errors.New("service: user id is required")
	}
	if input.FirstName == "" {
		input.FirstName = "Unknown"
	}
	err := r.teachers.Upsert(ctx, repository.UpsertParams{
		UserID:      input.UserID,
		Username:    input.Username,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		PhoneNumber: input.PhoneNumber,
		Language:    input.Language,
		IsAdmin:     r.admins.IsAdmin(input.UserID),
	})
	if err != nil {
		return storageErr(err)
	}
	r.logger.Info("teacher registered", zap.Int64("user_id", input.UserID))
	return nil
}

// Get returns the teacher profile.
func (r *Registry) Get(ctx context.Context, userID int64) (*models.Teacher, error) {
	teacher, err := r.teachers.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrTeacherNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return teacher, nil
}

// SetLanguage stores the preferred language.
func (r *Registry) SetLanguage(ctx context.Context, userID int64, language string) error {
	if err := r.teachers.SetLanguage(ctx, userID, language); err != nil {
		if errors.Is(err, repository.ErrTeacherNotFound) {
			return err
		}
		return storageErr(err)
	}
	return nil
}

// SetNotifications toggles reminder delivery.
func (r *Registry) SetNotifications(ctx context.Context, userID int64, enabled bool) error {
	if err := r.teachers.SetNotifications(ctx, userID, enabled); err != nil {
		if errors.Is(err, repository.ErrTeacherNotFound) {
			return err
		}
		return storageErr(err)
	}
	return nil
}

// SetActive marks a teacher active or inactive (admin operation).
func (r *Registry) SetActive(ctx context.Context, userID int64, active bool) error {
	if err := r.teachers.SetActive(ctx, userID, active); err != nil {
		if errors.Is(err, repository.ErrTeacherNotFound) {
			return err
		}
		return storageErr(err)
	}
	return nil
}
