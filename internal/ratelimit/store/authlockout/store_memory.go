// Package authlockout stores failed sign-in counters.
package authlockout

import (
	"context"
	"sync"
	"time"

	"incorp/internal/ratelimit/models"
	"incorp/pkg/requestcontext"
)

// InMemoryAuthLockoutStore keeps counters in process memory. It suits a
// single portal instance; use the Redis store when running several.
type InMemoryAuthLockoutStore struct {
	mu      sync.Mutex
	records map[string]*models.AuthLockout
}

func New() *InMemoryAuthLockoutStore {
	return &InMemoryAuthLockoutStore{records: make(map[string]*models.AuthLockout)}
}

// RecordFailure counts one failure at the request time. A record whose
// window has passed, or whose lock has expired, starts over at one.
func (s *InMemoryAuthLockoutStore) RecordFailure(ctx context.Context, identifier string, window time.Duration) (*models.AuthLockout, error) {
	now := requestcontext.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identifier]
	if !ok || expired(rec, now, window) {
		rec = &models.AuthLockout{Identifier: identifier, FirstFailureAt: now}
		s.records[identifier] = rec
	}
	rec.FailureCount++
	rec.LastFailureAt = now
	return clone(rec), nil
}

// Get returns a copy of the record, or nil when there is none.
func (s *InMemoryAuthLockoutStore) Get(_ context.Context, identifier string) (*models.AuthLockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[identifier]
	if !ok {
		return nil, nil
	}
	return clone(rec), nil
}

// Lock blocks the identifier until the given time.
func (s *InMemoryAuthLockoutStore) Lock(_ context.Context, identifier string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[identifier]
	if !ok {
		rec = &models.AuthLockout{Identifier: identifier}
		s.records[identifier] = rec
	}
	u := until
	rec.LockedUntil = &u
	return nil
}

func (s *InMemoryAuthLockoutStore) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identifier)
	return nil
}

func expired(rec *models.AuthLockout, now time.Time, window time.Duration) bool {
	if rec.LockedUntil != nil {
		return !rec.IsLockedAt(now)
	}
	return !now.Before(rec.FirstFailureAt.Add(window))
}

func clone(rec *models.AuthLockout) *models.AuthLockout {
	cp := *rec
	if rec.LockedUntil != nil {
		u := *rec.LockedUntil
		cp.LockedUntil = &u
	}
	return &cp
}
