package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"incorp/internal/audit"
	"incorp/internal/auth/metrics"
	"incorp/internal/auth/models"
	lockoutModels "incorp/internal/ratelimit/models"
	"incorp/pkg/domain"
	dErrors "incorp/pkg/domain-errors"
	"incorp/pkg/platform/sentinel"
	"incorp/pkg/requestcontext"
)

type PrincipalStore interface {
	Create(ctx context.Context, p *models.Principal) error
	FindByID(ctx context.Context, id domain.PrincipalID) (*models.Principal, error)
	FindByEmail(ctx context.Context, email string) (*models.Principal, error)
	ListByRole(ctx context.Context, role domain.Role) ([]*models.Principal, error)
}

// TokenRevocationList records signed-out session tokens until they expire.
type TokenRevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type TokenService interface {
	Issue(p *models.Principal) (string, models.Identity, error)
	Validate(raw string) (models.Identity, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Lockout throttles repeated sign-in failures per email and client address.
type Lockout interface {
	Check(ctx context.Context, identifier, ip string) (*lockoutModels.Decision, error)
	RecordFailure(ctx context.Context, identifier, ip string) (*lockoutModels.AuthLockout, error)
	Clear(ctx context.Context, identifier, ip string) error
}

const invalidCredentials = "invalid email or password"

// Service authenticates staff principals and manages their sessions.
type Service struct {
	principals     PrincipalStore
	trl            TokenRevocationList
	tokens         TokenService
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	lockout        Lockout
	bcryptCost     int

	dummyOnce sync.Once
	dummyHash []byte
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithLockout enables sign-in throttling.
func WithLockout(l Lockout) Option {
	return func(s *Service) {
		s.lockout = l
	}
}

// WithBcryptCost sets the hashing cost for new passwords.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func New(principals PrincipalStore, trl TokenRevocationList, tokens TokenService, opts ...Option) (*Service, error) {
	if principals == nil {
		return nil, errors.New("principal store is required")
	}
	if trl == nil {
		return nil, errors.New("token revocation list is required")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	s := &Service{
		principals: principals,
		trl:        trl,
		tokens:     tokens,
		logger:     slog.Default(),
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SignIn checks credentials and issues a session token. Unknown emails and
// wrong passwords fail identically. With a lockout configured, a locked
// email and address pair is refused before the password is checked.
func (s *Service) SignIn(ctx context.Context, email, password string) (*models.SignInResult, error) {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		s.signInFailed(ctx, email, "missing_credentials")
		return nil, dErrors.New(dErrors.CodeUnauthorized, invalidCredentials)
	}
	if err := s.checkLockout(ctx, email); err != nil {
		return nil, err
	}

	p, err := s.principals.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load principal")
		}
		// Spend the same time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		s.signInFailed(ctx, email, "unknown_email")
		s.recordLockoutFailure(ctx, email)
		return nil, dErrors.New(dErrors.CodeUnauthorized, invalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		s.signInFailed(ctx, email, "wrong_password")
		s.recordLockoutFailure(ctx, email)
		return nil, dErrors.New(dErrors.CodeUnauthorized, invalidCredentials)
	}

	raw, identity, err := s.tokens.Issue(p)
	if err != nil {
		return nil, err
	}
	if s.lockout != nil {
		if err := s.lockout.Clear(ctx, email, requestcontext.ClientIP(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to clear sign-in failures",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}

	if s.metrics != nil {
		s.metrics.IncrementSignIn("success")
	}
	s.emit(ctx, audit.Event{
		Action:    audit.ActionPrincipalSignedIn,
		ActorID:   p.ID.String(),
		ActorRole: string(p.Role),
		Subject:   p.ID.String(),
	})
	return &models.SignInResult{Token: raw, ExpiresAt: identity.ExpiresAt, Identity: identity}, nil
}

// Authenticate validates a session token and rejects revoked ones. A
// revocation list that cannot be reached fails closed.
func (s *Service) Authenticate(ctx context.Context, raw string) (*models.Identity, error) {
	if s.metrics != nil {
		defer s.metrics.ObserveAuthenticate(time.Now())
	}
	if raw == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session token is required")
	}
	identity, err := s.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}
	revoked, err := s.trl.IsRevoked(ctx, identity.TokenID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to check token revocation",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "session could not be verified")
	}
	if revoked {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session has been signed out")
	}
	return &identity, nil
}

// SignOut revokes the token for the rest of its lifetime. Tokens that are
// already invalid or expired need no revocation.
func (s *Service) SignOut(ctx context.Context, raw string) error {
	identity, err := s.tokens.Validate(raw)
	if err != nil {
		return nil
	}
	ttl := identity.ExpiresAt.Sub(requestcontext.Now(ctx))
	if ttl <= 0 {
		return nil
	}
	if err := s.trl.RevokeToken(ctx, identity.TokenID, ttl); err != nil {
		s.logger.ErrorContext(ctx, "failed to add token to revocation list",
			"error", err,
			"jti", identity.TokenID,
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign out")
	}

	if s.metrics != nil {
		s.metrics.IncrementSignOut()
	}
	s.emit(ctx, audit.Event{
		Action:    audit.ActionPrincipalSignedOut,
		ActorID:   identity.PrincipalID.String(),
		ActorRole: string(identity.Role),
		Subject:   identity.PrincipalID.String(),
	})
	return nil
}

// CreatePrincipal provisions an account with a bcrypt password hash.
func (s *Service) CreatePrincipal(ctx context.Context, req models.NewPrincipal) (*models.Principal, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	p := &models.Principal{
		ID:           domain.PrincipalID(uuid.New()),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         req.Role,
		CreatedAt:    requestcontext.Now(ctx).UTC(),
	}
	if err := s.principals.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create principal")
	}

	s.logger.InfoContext(ctx, "principal created",
		"principal_id", p.ID.String(),
		"role", string(p.Role),
	)
	s.emit(ctx, audit.Event{
		Action:  audit.ActionPrincipalCreated,
		Subject: p.ID.String(),
		Reason:  string(p.Role),
	})
	return p, nil
}

// EnsurePrincipal creates the account unless the email is already
// registered. Used to seed the first admin.
func (s *Service) EnsurePrincipal(ctx context.Context, req models.NewPrincipal) (bool, error) {
	if _, err := s.principals.FindByEmail(ctx, req.Email); err == nil {
		return false, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load principal")
	}
	if _, err := s.CreatePrincipal(ctx, req); err != nil {
		return false, err
	}
	return true, nil
}

// ListHandlers returns every principal that can be assigned requests.
func (s *Service) ListHandlers(ctx context.Context) ([]*models.Principal, error) {
	out, err := s.principals.ListByRole(ctx, domain.RoleHandler)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list handlers")
	}
	return out, nil
}

// FindByEmail looks up one principal.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	p, err := s.principals.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "principal not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load principal")
	}
	return p, nil
}

// RoleOf returns the role of an existing principal.
func (s *Service) RoleOf(ctx context.Context, id domain.PrincipalID) (domain.Role, error) {
	p, err := s.principals.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "principal not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load principal")
	}
	return p.Role, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.bcryptCost)
	})
	return s.dummyHash
}

// checkLockout refuses a locked pair. A lockout store that cannot be reached
// lets the attempt through so an outage does not block every sign-in.
func (s *Service) checkLockout(ctx context.Context, email string) error {
	if s.lockout == nil {
		return nil
	}
	decision, err := s.lockout.Check(ctx, email, requestcontext.ClientIP(ctx))
	if err != nil {
		s.logger.WarnContext(ctx, "sign-in lockout unavailable",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil
	}
	if decision.Allowed {
		return nil
	}
	s.signInFailed(ctx, email, "locked_out")
	return dErrors.New(dErrors.CodeRateLimited, "too many failed sign-in attempts")
}

func (s *Service) recordLockoutFailure(ctx context.Context, email string) {
	if s.lockout == nil {
		return
	}
	if _, err := s.lockout.RecordFailure(ctx, email, requestcontext.ClientIP(ctx)); err != nil {
		s.logger.WarnContext(ctx, "failed to record sign-in failure",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) signInFailed(ctx context.Context, email, reason string) {
	if s.metrics != nil {
		s.metrics.IncrementSignIn("failure")
	}
	s.logger.WarnContext(ctx, "sign in failed",
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.Event{
		Action:  audit.ActionSignInFailed,
		Subject: email,
		Reason:  reason,
	})
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", string(event.Action),
			"error", err,
		)
	}
}
