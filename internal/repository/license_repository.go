package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskboard/api/internal/models"
)

type LicenseRepository struct {
	pool *pgxpool.Pool
}

func NewLicenseRepository(pool *pgxpool.Pool) *LicenseRepository {
	return &LicenseRepository{pool: pool}
}

func (r *LicenseRepository) FindKeyByHash(ctx context.Context, keyHash string) (models.LicenseKey, error) {
	const query = `
		SELECT id, key_hash, is_multi_use, is_used, feature, expires_at, created_at
		FROM license_keys WHERE key_hash = $1
	`

	var key models.LicenseKey
	err := r.pool.QueryRow(ctx, query, keyHash).Scan(
		&key.ID,
		&key.KeyHash,
		&key.IsMultiUse,
		&key.IsUsed,
		&key.Feature,
		&key.ExpiresAt,
		&key.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.LicenseKey{}, ErrLicenseKeyNotFound
		}
		return models.LicenseKey{}, err
	}
	return key, nil
}

// LatestActivation returns the user's most recent activation joined with its key's expiry.
func (r *LicenseRepository) LatestActivation(ctx context.Context, userID int64) (models.Activation, error) {
	const query = `
		SELECT ul.id, ul.user_id, ul.license_key_id, ul.activated_at, ul.feature, lk.expires_at
		FROM user_licenses ul
		JOIN license_keys lk ON lk.id = ul.license_key_id
		WHERE ul.user_id = $1
		ORDER BY ul.activated_at DESC, ul.id DESC
		LIMIT 1
	`

	var activation models.Activation
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&activation.ID,
		&activation.UserID,
		&activation.LicenseKeyID,
		&activation.ActivatedAt,
		&activation.Feature,
		&activation.KeyExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Activation{}, ErrNoActivation
		}
		return models.Activation{}, err
	}
	return activation, nil
}

// Activate binds the key to the user in one transaction. A single-use key is consumed with a
// conditional update; losing that race yields ErrLicenseKeyUsed and nothing is written.
// A second activation of the same pair yields ErrAlreadyActivated.
func (r *LicenseRepository) Activate(ctx context.Context, userID int64, key models.LicenseKey) (models.Activation, error) {
	const consume = `UPDATE license_keys SET is_used = TRUE WHERE id = $1 AND is_used = FALSE`
	const insert = `
		INSERT INTO user_licenses (user_id, license_key_id, activated_at, feature)
		VALUES ($1, $2, NOW(), $3)
		RETURNING id, activated_at
	`

	activation := models.Activation{
		UserLicense: models.UserLicense{
			UserID:       userID,
			LicenseKeyID: key.ID,
			Feature:      key.Feature,
		},
		KeyExpiresAt: key.ExpiresAt,
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if !key.IsMultiUse {
			cmd, err := tx.Exec(ctx, consume, key.ID)
			if err != nil {
				return fmt.Errorf("consume license key: %w", err)
			}
			if cmd.RowsAffected() == 0 {
				return ErrLicenseKeyUsed
			}
		}

		err := tx.QueryRow(ctx, insert, userID, key.ID, key.Feature).Scan(&activation.ID, &activation.ActivatedAt)
		if err != nil {
			if _, ok := uniqueConstraint(err); ok {
				return ErrAlreadyActivated
			}
			return fmt.Errorf("insert activation: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Activation{}, err
	}
	return activation, nil
}

// CreateKey stores a new key by hash.
func (r *LicenseRepository) CreateKey(ctx context.Context, key models.LicenseKey) (models.LicenseKey, error) {
	const query = `
		INSERT INTO license_keys (key_hash, is_multi_use, is_used, feature, expires_at, created_at)
		VALUES ($1, $2, FALSE, $3, $4, NOW())
		RETURNING id, is_used, created_at
	`

	err := r.pool.QueryRow(ctx, query, key.KeyHash, key.IsMultiUse, key.Feature, key.ExpiresAt).
		Scan(&key.ID, &key.IsUsed, &key.CreatedAt)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return models.LicenseKey{}, ErrLicenseKeyExists
		}
		return models.LicenseKey{}, fmt.Errorf("insert license key: %w", err)
	}
	return key, nil
}

func (r *LicenseRepository) Stats(ctx context.Context) (models.LicenseKeyStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_used),
			COUNT(*) FILTER (WHERE expires_at IS NOT NULL AND expires_at < NOW()),
			COUNT(*) FILTER (WHERE is_multi_use),
			(SELECT COUNT(*) FROM user_licenses)
		FROM license_keys
	`

	var stats models.LicenseKeyStats
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.Total,
		&stats.Used,
		&stats.Expired,
		&stats.MultiUse,
		&stats.Activations,
	)
	if err != nil {
		return models.LicenseKeyStats{}, fmt.Errorf("license stats: %w", err)
	}
	return stats, nil
}
