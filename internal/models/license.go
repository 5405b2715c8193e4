package models

import "time"

// LicenseKey is a redeemable grant. Only the SHA-256 of the normalized key is stored.
type LicenseKey struct {
	ID         int64
	KeyHash    string
	IsMultiUse bool
	IsUsed     bool
	Feature    *string
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// ExpiredAt reports whether the key has an expiry strictly before now.
func (k LicenseKey) ExpiredAt(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// UserLicense binds a user to a license key. Feature is copied from the key at activation.
type UserLicense struct {
	ID           int64
	UserID       int64
	LicenseKeyID int64
	ActivatedAt  time.Time
	Feature      *string
}

// Activation is a UserLicense joined with the bound key's expiry, which is evaluated live.
type Activation struct {
	UserLicense
	KeyExpiresAt *time.Time
}

func (a Activation) ExpiredAt(now time.Time) bool {
	return a.KeyExpiresAt != nil && a.KeyExpiresAt.Before(now)
}

type LicenseStatus struct {
	Licensed  bool
	ExpiresAt *time.Time
	Feature   *string
}

type LicenseKeyStats struct {
	Total       int64
	Used        int64
	Expired     int64
	MultiUse    int64
	Activations int64
}
