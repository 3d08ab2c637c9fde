package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedupe tracks provider event ids so webhook retries never process the
// same message twice. Entries expire after the retention window; providers
// do not retry past that.
type Dedupe struct {
	client    *redis.Client
	retention time.Duration
}

func NewDedupe(client *redis.Client, retention time.Duration) *Dedupe {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Dedupe{client: client, retention: retention}
}

// MarkProcessed records the event id. first=false means it was seen before.
func (d *Dedupe) MarkProcessed(ctx context.Context, provider, eventID string) (first bool, err error) {
	key := fmt.Sprintf("webhook:%s:%s", provider, eventID)
	first, err = d.client.SetNX(ctx, key, "1", d.retention).Result()
	if err != nil {
		return false, fmt.Errorf("messaging: marking event processed: %w", err)
	}
	return first, nil
}
