// Package lock provides short redis-backed mutual exclusion and dedupe keys.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Lease is a held lock.
type Lease struct {
	r     *Redis
	key   string
	token string
}

// Acquire takes key for ttl. ok is false when somebody else holds it.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	token, err := newToken()
	if err != nil {
		return nil, false, err
	}
	full := r.prefix + key
	ok, err := r.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", full, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lease{r: r, key: full, token: token}, true, nil
}

// Release frees the lease unless it already expired and was taken over.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.r.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

// FirstSeen records key for ttl and reports whether it was new.
func (r *Redis) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	full := r.prefix + key
	ok, err := r.client.SetNX(ctx, full, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark %s: %w", full, err)
	}
	return ok, nil
}

// Forget removes a dedupe key so a failed delivery can be retried.
func (r *Redis) Forget(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
