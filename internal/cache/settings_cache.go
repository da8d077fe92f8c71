package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"shipment-orchestrator/internal/models"
)

const settingsKey = "shipment-orchestrator:settings"

// SettingsCache caches the operational part of the shipment settings in Redis.
// Credentials, the token and the webhook secret are tagged json:"-" and are
// therefore never written to Redis; a cached value must not be used for login
// or webhook verification.
type SettingsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSettingsCache creates a settings cache. A nil client disables caching.
func NewSettingsCache(client *redis.Client, ttl time.Duration) *SettingsCache {
	return &SettingsCache{client: client, ttl: ttl}
}

// Get returns the cached settings, or nil on a miss
func (c *SettingsCache) Get(ctx context.Context) (*models.ShipmentSettings, error) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil, nil
	}

	data, err := c.client.Get(ctx, settingsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var settings models.ShipmentSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Set caches the settings
func (c *SettingsCache) Set(ctx context.Context, settings *models.ShipmentSettings) error {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, settingsKey, data, c.ttl).Err()
}

// Invalidate removes the cached settings
func (c *SettingsCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, settingsKey).Err()
}

// IsAvailable returns true if the cache is available
func (c *SettingsCache) IsAvailable() bool {
	return c != nil && c.client != nil && c.ttl > 0
}
