package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"taskboard/api/internal/cache"
	"taskboard/api/internal/models"
	"taskboard/api/internal/repository"
	"taskboard/api/internal/security"
)

var fastArgon = security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

type memUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]models.User
	err    error
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[int64]models.User)}
}

func (m *memUserStore) Create(_ context.Context, user models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.User{}, m.err
	}
	for _, existing := range m.users {
		if existing.Username == user.Username {
			return models.User{}, repository.ErrUsernameTaken
		}
		if existing.Email == user.Email {
			return models.User{}, repository.ErrEmailTaken
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return user, nil
}

func (m *memUserStore) GetByID(_ context.Context, id int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.User{}, m.err
	}
	user, ok := m.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *memUserStore) FindByLogin(_ context.Context, identifier string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.User{}, m.err
	}
	var byEmail *models.User
	for _, user := range m.users {
		if user.Username == identifier {
			return user, nil
		}
		if user.Email == strings.ToLower(identifier) {
			u := user
			byEmail = &u
		}
	}
	if byEmail != nil {
		return *byEmail, nil
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *memUserStore) CheckAvailable(_ context.Context, username, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, user := range m.users {
		if user.Username == username {
			return repository.ErrUsernameTaken
		}
	}
	for _, user := range m.users {
		if user.Email == email {
			return repository.ErrEmailTaken
		}
	}
	return nil
}

func (m *memUserStore) setStatus(id int64, status models.UserStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.users[id]
	user.Status = status
	m.users[id] = user
}

// memLicenseStore serializes Activate the way the datastore transaction does.
type memLicenseStore struct {
	mu          sync.Mutex
	nextKeyID   int64
	nextActID   int64
	keys        map[int64]models.LicenseKey
	activations []models.UserLicense
	clock       time.Time
	err         error
}

func newMemLicenseStore() *memLicenseStore {
	return &memLicenseStore{
		keys:  make(map[int64]models.LicenseKey),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memLicenseStore) addKey(t *testing.T, multiUse bool, feature string, expiresAt *time.Time) string {
	t.Helper()
	raw, err := security.GenerateLicenseKey()
	require.NoError(t, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextKeyID++
	f := feature
	m.keys[m.nextKeyID] = models.LicenseKey{
		ID:         m.nextKeyID,
		KeyHash:    security.HashLicenseKey(raw),
		IsMultiUse: multiUse,
		Feature:    &f,
		ExpiresAt:  expiresAt,
		CreatedAt:  m.clock,
	}
	return raw
}

func (m *memLicenseStore) keyByRaw(raw string) models.LicenseKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash := security.HashLicenseKey(raw)
	for _, key := range m.keys {
		if key.KeyHash == hash {
			return key
		}
	}
	return models.LicenseKey{}
}

func (m *memLicenseStore) setExpiry(raw string, expiresAt time.Time) {
	key := m.keyByRaw(raw)
	m.mu.Lock()
	defer m.mu.Unlock()
	key.ExpiresAt = &expiresAt
	m.keys[key.ID] = key
}

func (m *memLicenseStore) activationCount(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.activations {
		if a.UserID == userID {
			n++
		}
	}
	return n
}

func (m *memLicenseStore) FindKeyByHash(_ context.Context, keyHash string) (models.LicenseKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.LicenseKey{}, m.err
	}
	for _, key := range m.keys {
		if key.KeyHash == keyHash {
			return key, nil
		}
	}
	return models.LicenseKey{}, repository.ErrLicenseKeyNotFound
}

func (m *memLicenseStore) LatestActivation(_ context.Context, userID int64) (models.Activation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Activation{}, m.err
	}
	var own []models.UserLicense
	for _, a := range m.activations {
		if a.UserID == userID {
			own = append(own, a)
		}
	}
	if len(own) == 0 {
		return models.Activation{}, repository.ErrNoActivation
	}
	sort.Slice(own, func(i, j int) bool {
		if own[i].ActivatedAt.Equal(own[j].ActivatedAt) {
			return own[i].ID > own[j].ID
		}
		return own[i].ActivatedAt.After(own[j].ActivatedAt)
	})
	latest := own[0]
	return models.Activation{UserLicense: latest, KeyExpiresAt: m.keys[latest.LicenseKeyID].ExpiresAt}, nil
}

func (m *memLicenseStore) Activate(_ context.Context, userID int64, key models.LicenseKey) (models.Activation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Activation{}, m.err
	}

	stored := m.keys[key.ID]
	if !stored.IsMultiUse && stored.IsUsed {
		return models.Activation{}, repository.ErrLicenseKeyUsed
	}
	for _, a := range m.activations {
		if a.UserID == userID && a.LicenseKeyID == key.ID {
			return models.Activation{}, repository.ErrAlreadyActivated
		}
	}

	if !stored.IsMultiUse {
		stored.IsUsed = true
		m.keys[key.ID] = stored
	}
	m.nextActID++
	m.clock = m.clock.Add(time.Second)
	activation := models.UserLicense{
		ID:           m.nextActID,
		UserID:       userID,
		LicenseKeyID: key.ID,
		ActivatedAt:  m.clock,
		Feature:      key.Feature,
	}
	m.activations = append(m.activations, activation)
	return models.Activation{UserLicense: activation, KeyExpiresAt: stored.ExpiresAt}, nil
}

type memStatusCache struct {
	mu      sync.Mutex
	entries map[int64]cache.LicenseSnapshot
	gets    int
	err     error
}

func newMemStatusCache() *memStatusCache {
	return &memStatusCache{entries: make(map[int64]cache.LicenseSnapshot)}
}

func (m *memStatusCache) Get(_ context.Context, userID int64) (cache.LicenseSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.err != nil {
		return cache.LicenseSnapshot{}, m.err
	}
	snapshot, ok := m.entries[userID]
	if !ok {
		return cache.LicenseSnapshot{}, cache.ErrMiss
	}
	return snapshot, nil
}

func (m *memStatusCache) Set(_ context.Context, userID int64, snapshot cache.LicenseSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries[userID] = snapshot
	return nil
}

func (m *memStatusCache) Add(_ context.Context, userID int64, snapshot cache.LicenseSnapshot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.entries[userID]; ok {
		return false, nil
	}
	m.entries[userID] = snapshot
	return true, nil
}

type recordingMetrics struct {
	mu          sync.Mutex
	auth        map[string]int
	activations map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{auth: make(map[string]int), activations: make(map[string]int)}
}

func (r *recordingMetrics) AuthEvent(event, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auth[event+":"+outcome]++
}

func (r *recordingMetrics) LicenseActivation(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activations[outcome]++
}

type memTaskStore struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]models.Task
	err    error
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[int64]models.Task)}
}

func (m *memTaskStore) List(_ context.Context, userID int64, filter repository.TaskFilter) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	tasks := make([]models.Task, 0)
	for _, task := range m.tasks {
		if task.UserID != userID {
			continue
		}
		if filter.Completed != nil && task.Completed != *filter.Completed {
			continue
		}
		if filter.Column != nil && task.Column != *filter.Column {
			continue
		}
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID > tasks[j].ID })
	return tasks, nil
}

func (m *memTaskStore) Get(_ context.Context, userID, id int64) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok || task.UserID != userID {
		return models.Task{}, repository.ErrTaskNotFound
	}
	return task, nil
}

func (m *memTaskStore) Create(_ context.Context, task models.Task) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Task{}, m.err
	}
	m.nextID++
	task.ID = m.nextID
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	m.tasks[task.ID] = task
	return task, nil
}

func (m *memTaskStore) Update(_ context.Context, task models.Task) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tasks[task.ID]
	if !ok || existing.UserID != task.UserID {
		return models.Task{}, repository.ErrTaskNotFound
	}
	task.UpdatedAt = time.Now()
	m.tasks[task.ID] = task
	return task, nil
}

func (m *memTaskStore) Delete(_ context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok || task.UserID != userID {
		return repository.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

var errStoreDown = errors.New("connection refused")

func newTestTokens(t *testing.T) *security.TokenService {
	t.Helper()
	tokens, err := security.NewTokenService("test-secret", time.Hour, 14*24*time.Hour)
	require.NoError(t, err)
	return tokens
}

type authFixture struct {
	users   *memUserStore
	tokens  *security.TokenService
	guard   *SessionGuard
	auth    *AuthService
	metrics *recordingMetrics
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	users := newMemUserStore()
	tokens := newTestTokens(t)
	guard := NewSessionGuard(tokens, users, zerolog.Nop())
	metrics := newRecordingMetrics()
	auth := NewAuthService(users, security.NewArgon2Hasher(fastArgon), tokens, guard, metrics, zerolog.Nop())
	return authFixture{users: users, tokens: tokens, guard: guard, auth: auth, metrics: metrics}
}
