package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for revoked session tokens
	revokedTokenKeyPrefix = "portal:trl:jti:"
)

// RedisTRL is a Redis-backed token revocation list, shared by every portal
// instance. Entries expire with the token they revoke.
type RedisTRL struct {
	client   redis.Cmdable
	observer func(time.Duration)
}

// RedisTRLOption configures a RedisTRL instance.
type RedisTRLOption func(*RedisTRL)

// WithLatencyObserver receives the duration of every IsRevoked call.
func WithLatencyObserver(fn func(time.Duration)) RedisTRLOption {
	return func(t *RedisTRL) {
		t.observer = fn
	}
}

func NewRedisTRL(client redis.Cmdable, opts ...RedisTRLOption) *RedisTRL {
	trl := &RedisTRL{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(trl)
		}
	}
	return trl
}

// RevokeToken marks jti as revoked for ttl using SET with expiry.
func (t *RedisTRL) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	// The key's existence is the marker
	if err := t.client.Set(ctx, revokedTokenKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti is on the list. Expired entries are gone.
func (t *RedisTRL) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if t.observer != nil {
		start := time.Now()
		defer func() { t.observer(time.Since(start)) }()
	}
	if jti == "" {
		return false, nil
	}
	err := t.client.Get(ctx, revokedTokenKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return true, nil
}
