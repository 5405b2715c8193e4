package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when no snapshot is cached for the user.
var ErrMiss = errors.New("cache miss")

// LicenseSnapshot is the cached form of a user's latest activation. Found=false caches the
// absence of any activation. Expiry is stored, never the licensed verdict.
type LicenseSnapshot struct {
	Found     bool       `json:"found"`
	Feature   *string    `json:"feature,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type LicenseStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLicenseStatusCache(client *redis.Client, ttl time.Duration) *LicenseStatusCache {
	return &LicenseStatusCache{client: client, ttl: ttl}
}

func licenseStatusKey(userID int64) string {
	return fmt.Sprintf("license:status:%d", userID)
}

func (c *LicenseStatusCache) Get(ctx context.Context, userID int64) (LicenseSnapshot, error) {
	raw, err := c.client.Get(ctx, licenseStatusKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return LicenseSnapshot{}, ErrMiss
		}
		return LicenseSnapshot{}, fmt.Errorf("redis get: %w", err)
	}

	var snapshot LicenseSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return LicenseSnapshot{}, fmt.Errorf("decode license snapshot: %w", err)
	}
	return snapshot, nil
}

func (c *LicenseStatusCache) Set(ctx context.Context, userID int64, snapshot LicenseSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode license snapshot: %w", err)
	}
	if err := c.client.Set(ctx, licenseStatusKey(userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Add stores the snapshot only when no entry exists and reports whether it was stored.
// Read-through fills use it so they never replace a snapshot written by an activation.
func (c *LicenseStatusCache) Add(ctx context.Context, userID int64, snapshot LicenseSnapshot) (bool, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return false, fmt.Errorf("encode license snapshot: %w", err)
	}
	stored, err := c.client.SetNX(ctx, licenseStatusKey(userID), raw, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return stored, nil
}

func (c *LicenseStatusCache) Delete(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, licenseStatusKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *LicenseStatusCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
