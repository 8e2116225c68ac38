package services

import (
	"errors"
	"fmt"

	"github.com/learnsy/backend/internal/models"
)

// Service level errors. Handlers map them to HTTP statuses with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrSessionClosed    = errors.New("study session already ended")
	ErrSessionExpired   = errors.New("study session expired")
	ErrUnsupportedMedia = errors.New("unsupported media type")
)

// invalidInput builds an ErrInvalidInput with a client-facing message
func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidInput)
}

// notFound builds an ErrNotFound for entity
func notFound(entity string) error {
	return fmt.Errorf("%s not found: %w", entity, ErrNotFound)
}

// forbidden builds an ErrForbidden with a client-facing message
func forbidden(message string) error {
	return fmt.Errorf("%s: %w", message, ErrForbidden)
}

// mapRepoError translates repository sentinels into service errors, keeping other errors as they are
func mapRepoError(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrNotFound):
		return notFound(entity)
	case errors.Is(err, models.ErrDuplicate):
		return fmt.Errorf("%s already exists: %w", entity, ErrConflict)
	default:
		return err
	}
}
