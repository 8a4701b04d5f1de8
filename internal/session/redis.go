package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"aura-bot/internal/apperrors"
)

const redisPrefix = "admin_session:"

// Redis stores sessions as JSON values that expire with the session.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl, now: time.Now}
}

func (r *Redis) Create(ctx context.Context, username string) (Session, error) {
	token, err := newToken()
	if err != nil {
		return Session{}, err
	}
	now := r.now()
	s := Session{Token: token, Username: username, CreatedAt: now, ExpiresAt: now.Add(r.ttl)}

	raw, err := json.Marshal(s)
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, redisPrefix+token, raw, r.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return s, nil
}

func (r *Redis) Validate(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, apperrors.ErrInvalidSession
	}
	raw, err := r.client.Get(ctx, redisPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, apperrors.ErrInvalidSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func (r *Redis) Revoke(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, redisPrefix+token).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Sweep is a no-op, redis expires the keys itself.
func (r *Redis) Sweep(context.Context) (int, error) {
	return 0, nil
}
