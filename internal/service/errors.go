package service

import "taskboard/api/internal/apperr"

var (
	ErrUnauthenticated    = apperr.New(apperr.KindUnauthenticated, "unauthenticated", "not authenticated")
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthenticated, "invalid_credentials", "invalid credentials")
	ErrUsernameTaken      = apperr.New(apperr.KindConflict, "username_taken", "username already taken")
	ErrEmailTaken         = apperr.New(apperr.KindConflict, "email_taken", "email already registered")

	ErrInvalidLicenseFormat = apperr.New(apperr.KindValidation, "invalid_format", "invalid license key format")
	ErrLicenseNotFound      = apperr.New(apperr.KindNotFound, "license_not_found", "license key not found")
	ErrLicenseExpired       = apperr.New(apperr.KindStateConflict, "license_expired", "license key expired")
	ErrLicenseAlreadyUsed   = apperr.New(apperr.KindStateConflict, "license_already_used", "license key already used")
	ErrAlreadyActivated     = apperr.New(apperr.KindConflict, "already_activated", "license key already activated for this user")
	ErrLicenseRequired      = apperr.New(apperr.KindForbidden, "license_required", "an active license is required")

	ErrTaskNotFound = apperr.New(apperr.KindNotFound, "task_not_found", "task not found")
)

func validationError(message string) *apperr.Error {
	return apperr.New(apperr.KindValidation, "validation_error", message)
}
