package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inventaris/inventory-state/internal/core/ports"
)

const defaultSessionTTL = 24 * time.Hour

// SessionCache keeps the auth session in Redis so a restarted process picks
// it up again. Key format: inventaris:session:<profile>
type SessionCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

var _ ports.SessionCache = (*SessionCache)(nil)

// NewSessionCache returns a cache storing one session under profile. ttl caps
// how long a session without an expiry is kept.
func NewSessionCache(client *redis.Client, profile string, ttl time.Duration) *SessionCache {
	if profile == "" {
		profile = "default"
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionCache{client: client, key: "inventaris:session:" + profile, ttl: ttl}
}

// Load returns nil, nil when no session is stored.
func (c *SessionCache) Load(ctx context.Context) (*ports.AuthSession, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("session load: %w", err)
	}
	var sess ports.AuthSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		// unreadable entries are dropped rather than retried forever
		_ = c.client.Del(ctx, c.key).Err()
		return nil, nil
	}
	return &sess, nil
}

// Save stores the session until it expires.
func (c *SessionCache) Save(ctx context.Context, sess *ports.AuthSession) error {
	if sess == nil {
		return c.Clear(ctx)
	}
	ttl := c.ttl
	if !sess.ExpiresAt.IsZero() {
		ttl = time.Until(sess.ExpiresAt)
		if ttl <= 0 {
			return c.Clear(ctx)
		}
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := c.client.Set(ctx, c.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}

func (c *SessionCache) Clear(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}

// Ping reports cache reachability for the readiness probe.
func (c *SessionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
