package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"taskboard/api/internal/apperr"
	"taskboard/api/internal/cache"
	"taskboard/api/internal/models"
	"taskboard/api/internal/repository"
	"taskboard/api/internal/security"
)

// LicenseService is the license ledger: status lookups and key redemption.
type LicenseService struct {
	store   LicenseStore
	cache   StatusCache
	metrics Recorder
	log     zerolog.Logger
	now     func() time.Time
}

// NewLicenseService accepts a nil cache.
func NewLicenseService(store LicenseStore, statusCache StatusCache, metrics Recorder, log zerolog.Logger) *LicenseService {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &LicenseService{
		store:   store,
		cache:   statusCache,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

func (s *LicenseService) WithClock(now func() time.Time) *LicenseService {
	clone := *s
	clone.now = now
	return &clone
}

// Status reports the user's most recent activation. Expiry is checked against the clock on
// every call, so a cached snapshot never outlives its key.
func (s *LicenseService) Status(ctx context.Context, userID int64) (models.LicenseStatus, error) {
	snapshot, err := s.snapshot(ctx, userID)
	if err != nil {
		return models.LicenseStatus{}, err
	}
	return s.statusOf(snapshot), nil
}

func (s *LicenseService) ActivateByKey(ctx context.Context, userID int64, rawKey string) (models.LicenseStatus, error) {
	key := security.NormalizeLicenseKey(rawKey)
	if !security.ValidLicenseKey(key) {
		s.metrics.LicenseActivation("invalid_format")
		return models.LicenseStatus{}, ErrInvalidLicenseFormat
	}

	current, found, err := s.currentActivation(ctx, userID)
	if err != nil {
		return models.LicenseStatus{}, err
	}
	if found {
		s.metrics.LicenseActivation("already_licensed")
		return statusFromActivation(current), nil
	}

	licenseKey, err := s.store.FindKeyByHash(ctx, security.HashLicenseKey(key))
	if err != nil {
		if errors.Is(err, repository.ErrLicenseKeyNotFound) {
			s.metrics.LicenseActivation("not_found")
			return models.LicenseStatus{}, ErrLicenseNotFound
		}
		s.log.Error().Err(err).Int64("user_id", userID).Msg("license key lookup failed")
		return models.LicenseStatus{}, apperr.Internal(err, "lookup license key")
	}

	if licenseKey.ExpiredAt(s.now()) {
		s.metrics.LicenseActivation("expired")
		return models.LicenseStatus{}, ErrLicenseExpired
	}
	if !licenseKey.IsMultiUse && licenseKey.IsUsed {
		s.metrics.LicenseActivation("already_used")
		return models.LicenseStatus{}, ErrLicenseAlreadyUsed
	}

	activation, err := s.store.Activate(ctx, userID, licenseKey)
	if err != nil {
		return s.activationFailed(ctx, userID, licenseKey, err)
	}

	s.metrics.LicenseActivation("activated")
	s.log.Info().
		Int64("user_id", userID).
		Int64("license_key_id", licenseKey.ID).
		Bool("multi_use", licenseKey.IsMultiUse).
		Msg("license activated")

	s.remember(ctx, userID, snapshotOf(activation))
	return statusFromActivation(activation), nil
}

// ActivateByFile redeems the first key found in the uploaded bytes.
func (s *LicenseService) ActivateByFile(ctx context.Context, userID int64, data []byte) (models.LicenseStatus, error) {
	key, ok := security.ExtractLicenseKey(data)
	if !ok {
		s.metrics.LicenseActivation("invalid_format")
		return models.LicenseStatus{}, ErrInvalidLicenseFormat
	}
	return s.ActivateByKey(ctx, userID, key)
}

// activationFailed handles a lost race. If the winner was this same user with this same key
// the call is answered idempotently.
func (s *LicenseService) activationFailed(ctx context.Context, userID int64, key models.LicenseKey, err error) (models.LicenseStatus, error) {
	used := errors.Is(err, repository.ErrLicenseKeyUsed)
	duplicate := errors.Is(err, repository.ErrAlreadyActivated)
	if !used && !duplicate {
		s.metrics.LicenseActivation("error")
		s.log.Error().Err(err).Int64("user_id", userID).Msg("license activation failed")
		return models.LicenseStatus{}, apperr.Internal(err, "activate license")
	}

	current, found, lookupErr := s.currentActivation(ctx, userID)
	if lookupErr != nil {
		return models.LicenseStatus{}, lookupErr
	}
	if found && current.LicenseKeyID == key.ID {
		s.metrics.LicenseActivation("already_licensed")
		s.remember(ctx, userID, snapshotOf(current))
		return statusFromActivation(current), nil
	}

	if used {
		s.metrics.LicenseActivation("already_used")
		return models.LicenseStatus{}, ErrLicenseAlreadyUsed
	}
	s.metrics.LicenseActivation("already_activated")
	return models.LicenseStatus{}, ErrAlreadyActivated
}

// currentActivation reads the datastore directly and reports whether the latest activation
// is still within its key's expiry.
func (s *LicenseService) currentActivation(ctx context.Context, userID int64) (models.Activation, bool, error) {
	activation, err := s.store.LatestActivation(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNoActivation) {
			return models.Activation{}, false, nil
		}
		s.log.Error().Err(err).Int64("user_id", userID).Msg("latest activation lookup failed")
		return models.Activation{}, false, apperr.Internal(err, "lookup activation")
	}
	if activation.ExpiredAt(s.now()) {
		return activation, false, nil
	}
	return activation, true, nil
}

func (s *LicenseService) snapshot(ctx context.Context, userID int64) (cache.LicenseSnapshot, error) {
	if s.cache != nil {
		snapshot, err := s.cache.Get(ctx, userID)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn().Err(err).Int64("user_id", userID).Msg("license status cache read failed")
		}
	}

	activation, err := s.store.LatestActivation(ctx, userID)
	var snapshot cache.LicenseSnapshot
	switch {
	case err == nil:
		snapshot = snapshotOf(activation)
	case errors.Is(err, repository.ErrNoActivation):
		snapshot = cache.LicenseSnapshot{Found: false}
	default:
		s.log.Error().Err(err).Int64("user_id", userID).Msg("latest activation lookup failed")
		return cache.LicenseSnapshot{}, apperr.Internal(err, "lookup activation")
	}

	s.fill(ctx, userID, snapshot)
	return snapshot, nil
}

// fill caches a snapshot read from the datastore unless an entry already exists. An
// activation that commits while the read is in flight writes its own snapshot first,
// and that one must win.
func (s *LicenseService) fill(ctx context.Context, userID int64, snapshot cache.LicenseSnapshot) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Add(ctx, userID, snapshot); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("license status cache fill failed")
	}
}

// remember overwrites the cached snapshot after an activation.
func (s *LicenseService) remember(ctx context.Context, userID int64, snapshot cache.LicenseSnapshot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, userID, snapshot); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("license status cache write failed")
	}
}

func (s *LicenseService) statusOf(snapshot cache.LicenseSnapshot) models.LicenseStatus {
	if !snapshot.Found {
		return models.LicenseStatus{Licensed: false}
	}
	if snapshot.ExpiresAt != nil && snapshot.ExpiresAt.Before(s.now()) {
		return models.LicenseStatus{Licensed: false}
	}
	return models.LicenseStatus{
		Licensed:  true,
		ExpiresAt: snapshot.ExpiresAt,
		Feature:   snapshot.Feature,
	}
}

func snapshotOf(activation models.Activation) cache.LicenseSnapshot {
	return cache.LicenseSnapshot{
		Found:     true,
		Feature:   activation.Feature,
		ExpiresAt: activation.KeyExpiresAt,
	}
}

func statusFromActivation(activation models.Activation) models.LicenseStatus {
	return models.LicenseStatus{
		Licensed:  true,
		ExpiresAt: activation.KeyExpiresAt,
		Feature:   activation.Feature,
	}
}
