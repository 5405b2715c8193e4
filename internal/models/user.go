package models

import "time"

type UserStatus int16

const (
	UserStatusDisabled UserStatus = 0
	UserStatusActive   UserStatus = 1
)

func (s UserStatus) IsActive() bool {
	return s == UserStatusActive
}

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
