package handlers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"taskboard/api/internal/models"
	"taskboard/api/internal/repository"
	"taskboard/api/internal/security"
)

type userStore struct {
	mu    sync.Mutex
	users []models.User
}

func (s *userStore) Create(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username {
			return models.User{}, repository.ErrUsernameTaken
		}
		if u.Email == user.Email {
			return models.User{}, repository.ErrEmailTaken
		}
	}
	user.ID = int64(len(s.users) + 1)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	s.users = append(s.users, user)
	return user, nil
}

func (s *userStore) GetByID(_ context.Context, id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *userStore) FindByLogin(_ context.Context, identifier string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == identifier || u.Email == strings.ToLower(identifier) {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *userStore) CheckAvailable(_ context.Context, username, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return repository.ErrUsernameTaken
		}
		if u.Email == email {
			return repository.ErrEmailTaken
		}
	}
	return nil
}

type licenseStore struct {
	mu          sync.Mutex
	keys        []models.LicenseKey
	activations []models.Activation
}

func (s *licenseStore) add(raw string, multiUse bool, feature string, expiresAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, models.LicenseKey{
		ID:         int64(len(s.keys) + 1),
		KeyHash:    security.HashLicenseKey(raw),
		IsMultiUse: multiUse,
		Feature:    &feature,
		ExpiresAt:  expiresAt,
	})
}

func (s *licenseStore) FindKeyByHash(_ context.Context, keyHash string) (models.LicenseKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.KeyHash == keyHash {
			return k, nil
		}
	}
	return models.LicenseKey{}, repository.ErrLicenseKeyNotFound
}

func (s *licenseStore) LatestActivation(_ context.Context, userID int64) (models.Activation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.activations) - 1; i >= 0; i-- {
		if s.activations[i].UserID == userID {
			return s.activations[i], nil
		}
	}
	return models.Activation{}, repository.ErrNoActivation
}

func (s *licenseStore) Activate(_ context.Context, userID int64, key models.LicenseKey) (models.Activation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := &s.keys[key.ID-1]
	if !stored.IsMultiUse {
		if stored.IsUsed {
			return models.Activation{}, repository.ErrLicenseKeyUsed
		}
		stored.IsUsed = true
	}
	activation := models.Activation{
		UserLicense: models.UserLicense{
			ID:           int64(len(s.activations) + 1),
			UserID:       userID,
			LicenseKeyID: key.ID,
			ActivatedAt:  time.Now(),
			Feature:      key.Feature,
		},
		KeyExpiresAt: key.ExpiresAt,
	}
	s.activations = append(s.activations, activation)
	return activation, nil
}

type taskStore struct {
	mu    sync.Mutex
	tasks map[int64]models.Task
	next  int64
}

func (s *taskStore) List(_ context.Context, userID int64, filter repository.TaskFilter) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Task, 0)
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if filter.Completed != nil && t.Completed != *filter.Completed {
			continue
		}
		if filter.Column != nil && t.Column != *filter.Column {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *taskStore) Get(_ context.Context, userID, id int64) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return models.Task{}, repository.ErrTaskNotFound
	}
	return t, nil
}

func (s *taskStore) Create(_ context.Context, task models.Task) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks == nil {
		s.tasks = make(map[int64]models.Task)
	}
	s.next++
	task.ID = s.next
	task.CreatedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	task.UpdatedAt = task.CreatedAt
	s.tasks[task.ID] = task
	return task, nil
}

func (s *taskStore) Update(_ context.Context, task models.Task) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[task.ID]
	if !ok || t.UserID != task.UserID {
		return models.Task{}, repository.ErrTaskNotFound
	}
	s.tasks[task.ID] = task
	return task, nil
}

func (s *taskStore) Delete(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return repository.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }
