package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const webhookKeyPrefix = "shipment-orchestrator:webhook:"

// WebhookDeduper remembers recently processed webhook deliveries so retried
// deliveries of the same event skip the database. Processing stays idempotent
// without it.
type WebhookDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewWebhookDeduper creates a deduper. A nil client disables it.
func NewWebhookDeduper(client *redis.Client, ttl time.Duration) *WebhookDeduper {
	return &WebhookDeduper{client: client, ttl: ttl}
}

// FirstSeen records the fingerprint and reports whether it was new.
// When Redis is unavailable every delivery counts as new.
func (d *WebhookDeduper) FirstSeen(ctx context.Context, fingerprint string) (bool, error) {
	if d == nil || d.client == nil || d.ttl <= 0 {
		return true, nil
	}

	sum := sha256.Sum256([]byte(fingerprint))
	key := webhookKeyPrefix + hex.EncodeToString(sum[:])
	ok, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return true, err
	}
	return ok, nil
}

// Forget removes a fingerprint so the delivery can be processed again
func (d *WebhookDeduper) Forget(ctx context.Context, fingerprint string) error {
	if d == nil || d.client == nil {
		return nil
	}
	sum := sha256.Sum256([]byte(fingerprint))
	return d.client.Del(ctx, webhookKeyPrefix+hex.EncodeToString(sum[:])).Err()
}
