// Package authlockout decides whether a sign-in attempt may proceed after
// earlier failures for the same email and client address.
package authlockout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"incorp/internal/ratelimit/models"
	dErrors "incorp/pkg/domain-errors"
	"incorp/pkg/requestcontext"
)

type Store interface {
	RecordFailure(ctx context.Context, identifier string, window time.Duration) (*models.AuthLockout, error)
	Get(ctx context.Context, identifier string) (*models.AuthLockout, error)
	Lock(ctx context.Context, identifier string, until time.Time) error
	Clear(ctx context.Context, identifier string) error
}

// Config sets the failure budget. Attempts failures inside Window lock the
// pair for LockDuration.
type Config struct {
	Attempts     int
	Window       time.Duration
	LockDuration time.Duration
}

func DefaultConfig() Config {
	return Config{Attempts: 5, Window: 15 * time.Minute, LockDuration: 15 * time.Minute}
}

type Service struct {
	store  Store
	config Config
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth lockout store is required")
	}
	s := &Service{store: store, config: DefaultConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.Attempts <= 0 || s.config.Window <= 0 || s.config.LockDuration <= 0 {
		return nil, errors.New("auth lockout config must be positive")
	}
	return s, nil
}

// Check reports whether identifier may attempt a sign-in from ip.
func (s *Service) Check(ctx context.Context, identifier, ip string) (*models.Decision, error) {
	rec, err := s.store.Get(ctx, models.NewAuthLockoutKey(identifier, ip))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get auth lockout record")
	}
	now := requestcontext.Now(ctx)
	if rec == nil {
		return &models.Decision{Allowed: true, Remaining: s.config.Attempts}, nil
	}
	if rec.IsLockedAt(now) {
		return &models.Decision{Allowed: false, RetryAfter: rec.LockedUntil.Sub(now)}, nil
	}
	remaining := s.config.Attempts
	if rec.LockedUntil == nil && now.Before(rec.FirstFailureAt.Add(s.config.Window)) {
		remaining = max(s.config.Attempts-rec.FailureCount, 0)
	}
	return &models.Decision{Allowed: true, Remaining: remaining}, nil
}

// RecordFailure counts a failed sign-in and locks the pair once the budget
// is spent.
func (s *Service) RecordFailure(ctx context.Context, identifier, ip string) (*models.AuthLockout, error) {
	key := models.NewAuthLockoutKey(identifier, ip)
	rec, err := s.store.RecordFailure(ctx, key, s.config.Window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record auth failure")
	}
	if rec.FailureCount < s.config.Attempts || rec.LockedUntil != nil {
		return rec, nil
	}

	until := requestcontext.Now(ctx).Add(s.config.LockDuration)
	if err := s.store.Lock(ctx, key, until); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock identifier")
	}
	rec.LockedUntil = &until
	s.logger.WarnContext(ctx, "sign-in locked",
		"failures", rec.FailureCount,
		"locked_until", until,
		"request_id", requestcontext.RequestID(ctx),
	)
	return rec, nil
}

// Clear forgets earlier failures after a successful sign-in.
func (s *Service) Clear(ctx context.Context, identifier, ip string) error {
	if err := s.store.Clear(ctx, models.NewAuthLockoutKey(identifier, ip)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear auth failures")
	}
	return nil
}
