package service

import (
	"context"

	"taskboard/api/internal/cache"
	"taskboard/api/internal/models"
	"taskboard/api/internal/repository"
)

// UserStore is implemented by repository.UserRepository.
type UserStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	GetByID(ctx context.Context, id int64) (models.User, error)
	FindByLogin(ctx context.Context, identifier string) (models.User, error)
	CheckAvailable(ctx context.Context, username, email string) error
}

// LicenseStore is implemented by repository.LicenseRepository.
type LicenseStore interface {
	FindKeyByHash(ctx context.Context, keyHash string) (models.LicenseKey, error)
	LatestActivation(ctx context.Context, userID int64) (models.Activation, error)
	Activate(ctx context.Context, userID int64, key models.LicenseKey) (models.Activation, error)
}

// TaskStore is implemented by repository.TaskRepository.
type TaskStore interface {
	List(ctx context.Context, userID int64, filter repository.TaskFilter) ([]models.Task, error)
	Get(ctx context.Context, userID, id int64) (models.Task, error)
	Create(ctx context.Context, task models.Task) (models.Task, error)
	Update(ctx context.Context, task models.Task) (models.Task, error)
	Delete(ctx context.Context, userID, id int64) error
}

// StatusCache is implemented by cache.LicenseStatusCache.
type StatusCache interface {
	Get(ctx context.Context, userID int64) (cache.LicenseSnapshot, error)
	Set(ctx context.Context, userID int64, snapshot cache.LicenseSnapshot) error
	Add(ctx context.Context, userID int64, snapshot cache.LicenseSnapshot) (bool, error)
}

// Recorder is implemented by *metrics.Metrics, including its nil value.
type Recorder interface {
	AuthEvent(event, outcome string)
	LicenseActivation(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) AuthEvent(string, string) {}
func (nopRecorder) LicenseActivation(string) {}
