// Package cache keeps resolved sessions in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"contractdesk/internal/auth"

	"github.com/redis/go-redis/v9"
)

// Connect initializes a Redis client from URL or host:port input.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// PrincipalStore implements auth.PrincipalCache. Each session is stored
// under its jti; a per-user set tracks the jtis so role changes can drop
// every session of that user at once.
type PrincipalStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

var _ auth.PrincipalCache = (*PrincipalStore)(nil)

func NewPrincipalStore(client *redis.Client, ttl time.Duration) *PrincipalStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PrincipalStore{client: client, ttl: ttl, now: time.Now}
}

func sessionKey(jti string) string { return "session:" + jti }
func userSetKey(userID string) string { return "user:" + userID + ":sessions" }

func (s *PrincipalStore) GetPrincipal(ctx context.Context, jti string) (auth.Claims, bool, error) {
	raw, err := s.client.Get(ctx, sessionKey(jti)).Bytes()
	if errors.Is(err, redis.Nil) {
		return auth.Claims{}, false, nil
	}
	if err != nil {
		return auth.Claims{}, false, err
	}
	var c auth.Claims
	if err := json.Unmarshal(raw, &c); err != nil {
		return auth.Claims{}, false, err
	}
	return c, true, nil
}

func (s *PrincipalStore) SetPrincipal(ctx context.Context, c auth.Claims, sessionExpiry time.Time) error {
	ttl := s.ttl
	if remaining := sessionExpiry.Sub(s.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(c.JWTID), raw, ttl)
	pipe.SAdd(ctx, userSetKey(c.Subject), c.JWTID)
	pipe.Expire(ctx, userSetKey(c.Subject), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *PrincipalStore) InvalidateSession(ctx context.Context, jti string) error {
	return s.client.Del(ctx, sessionKey(jti)).Err()
}

func (s *PrincipalStore) InvalidateUser(ctx context.Context, userID string) error {
	jtis, err := s.client.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keys := make([]string, 0, len(jtis)+1)
	for _, j := range jtis {
		keys = append(keys, sessionKey(j))
	}
	keys = append(keys, userSetKey(userID))
	return s.client.Del(ctx, keys...).Err()
}
