package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"hookrelay/internal/domain/event"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Dedup key pattern:
// - dedup:{sha256(org \0 kind \0 business_key)} - short TTL marker, default 60s
//
// A marker only exists in Redis; eviction (false negative) is accepted
// as at-least-once semantics. The hash over NUL-delimited inputs keeps
// distinct tuples from ever colliding, so a false positive cannot
// happen.

// Deduplicator suppresses re-fan-out of the same logical event within
// a cooldown window.
type Deduplicator struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewDeduplicator(client *goredis.Client, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Deduplicator{client: client, ttl: ttl}
}

// ShouldSuppress atomically marks the (org, kind, businessKey) tuple and
// reports whether it had already been marked. Concurrent publishers of
// the same event race on a single SET NX, so exactly one of them wins.
func (d *Deduplicator) ShouldSuppress(ctx context.Context, orgID uuid.UUID, kind event.Kind, businessKey string) (bool, error) {
	key := dedupKey(orgID, kind, businessKey)
	set, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

func dedupKey(orgID uuid.UUID, kind event.Kind, businessKey string) string {
	h := sha256.New()
	h.Write([]byte(orgID.String()))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(businessKey))
	return "dedup:" + hex.EncodeToString(h.Sum(nil))
}
