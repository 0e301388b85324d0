package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds the caller's token,
// so an expired holder cannot free a lock taken over by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles advisory per-agent locks in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func agentLockKey(agentID string) string {
	return fmt.Sprintf("lock:agent:%s", agentID)
}

// AcquireAgentLock attempts to lock agentID for ttl. It returns the owner
// token and true on success, or false if the lock is already held.
func (s *LockStore) AcquireAgentLock(ctx context.Context, agentID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, agentLockKey(agentID), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// ReleaseAgentLock releases the lock for agentID if token still owns it.
func (s *LockStore) ReleaseAgentLock(ctx context.Context, agentID, token string) error {
	return releaseScript.Run(ctx, s.client, []string{agentLockKey(agentID)}, token).Err()
}
