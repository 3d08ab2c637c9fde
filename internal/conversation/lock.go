package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TurnLock serializes turn processing per conversation. Holding the lock is
// what guarantees at most one task mutation per conversation at a time; the
// TTL bounds how long a crashed worker can block the conversation.
type TurnLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTurnLock(client *redis.Client, ttl time.Duration) *TurnLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &TurnLock{client: client, ttl: ttl}
}

func lockKey(conversationID uuid.UUID) string {
	return "turnlock:" + conversationID.String()
}

// Acquire takes the conversation lock. ok=false means another turn holds it.
// The returned token must be presented to Release so a slow worker cannot
// free a lock it no longer owns.
func (l *TurnLock) Acquire(ctx context.Context, conversationID uuid.UUID) (token string, ok bool, err error) {
	token = uuid.NewString()
	ok, err = l.client.SetNX(ctx, lockKey(conversationID), token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("conversation: acquiring turn lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// Release frees the lock if the token still owns it.
func (l *TurnLock) Release(ctx context.Context, conversationID uuid.UUID, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{lockKey(conversationID)}, token).Err(); err != nil {
		return fmt.Errorf("conversation: releasing turn lock: %w", err)
	}
	return nil
}
