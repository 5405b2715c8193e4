package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrEmailTaken         = errors.New("email already registered")
	ErrLicenseKeyNotFound = errors.New("license key not found")
	ErrLicenseKeyExists   = errors.New("license key already exists")
	ErrLicenseKeyUsed     = errors.New("license key already used")
	ErrAlreadyActivated   = errors.New("license already activated for user")
	ErrNoActivation       = errors.New("no license activation")
	ErrTaskNotFound       = errors.New("task not found")
)

const uniqueViolation = "23505"

// uniqueConstraint returns the violated constraint name when err is a unique violation.
func uniqueConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
