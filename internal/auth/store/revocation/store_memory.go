package revocation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"incorp/pkg/platform/sentinel"
)

// Clock returns the current time.
type Clock func() time.Time

// InMemoryTRL keeps revocations in process memory. Expired entries are
// pruned lazily on write.
type InMemoryTRL struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	clock   Clock
}

type InMemoryOption func(*InMemoryTRL)

func WithClock(clock Clock) InMemoryOption {
	return func(t *InMemoryTRL) {
		if clock != nil {
			t.clock = clock
		}
	}
}

func NewInMemoryTRL(opts ...InMemoryOption) *InMemoryTRL {
	trl := &InMemoryTRL{revoked: make(map[string]time.Time), clock: time.Now}
	for _, opt := range opts {
		opt(trl)
	}
	return trl
}

func (t *InMemoryTRL) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	for k, exp := range t.revoked {
		if !now.Before(exp) {
			delete(t.revoked, k)
		}
	}
	t.revoked[jti] = now.Add(ttl)
	return nil
}

func (t *InMemoryTRL) IsRevoked(_ context.Context, jti string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	exp, ok := t.revoked[jti]
	return ok && t.clock().Before(exp), nil
}

// validateTTL rejects entries that would already be expired when written.
func validateTTL(ttl time.Duration) error {
	if ttl > 0 {
		return nil
	}
	return fmt.Errorf("revocation ttl %s: %w", ttl, sentinel.ErrInvalidState)
}
