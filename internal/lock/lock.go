// Package lock holds the redis primitives shared by sweep workers: a
// token-guarded mutex and a set-once marker for notification dedupe.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrNotConfigured = errors.New("lock_client_not_configured")
	ErrEmptyKey      = errors.New("lock_key_empty")
	ErrInvalidTTL    = errors.New("lock_ttl_not_positive")
)

type Locker struct {
	client *redis.Client
	script *redis.Script
}

// NewLocker returns nil when client is nil; a nil *Locker reports Enabled() false.
func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (l *Locker) Enabled() bool {
	return l != nil && l.client != nil
}

// TryLock sets key to a fresh token when absent. ok is false when another
// holder owns the key.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := l.validate(key, ttl); err != nil {
		return "", false, err
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release deletes key only while it still holds token.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if !l.Enabled() {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// MarkOnce reports whether this call was the first to mark key within ttl.
func (l *Locker) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := l.validate(key, ttl); err != nil {
		return false, err
	}
	return l.client.SetNX(ctx, key, "1", ttl).Result()
}

func (l *Locker) validate(key string, ttl time.Duration) error {
	if !l.Enabled() {
		return ErrNotConfigured
	}
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
