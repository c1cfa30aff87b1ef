package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"incorp/internal/auth/models"
	"incorp/pkg/domain"
	dErrors "incorp/pkg/domain-errors"
)

// Claims are the session token claims. Subject is the principal id.
type Claims struct {
	Role        string `json:"role"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	jwt.RegisteredClaims
}

// Service issues and validates HS256 session tokens.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(signingKey, issuer string, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs a token for p that expires after the configured TTL.
func (s *Service) Issue(p *models.Principal) (string, models.Identity, error) {
	now := s.now()
	identity := models.Identity{
		PrincipalID: p.ID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		Role:        p.Role,
		TokenID:     uuid.NewString(),
		ExpiresAt:   now.Add(s.ttl).Truncate(time.Second).UTC(),
	}
	claims := Claims{
		Role:        string(p.Role),
		DisplayName: p.DisplayName,
		Email:       p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			ExpiresAt: jwt.NewNumericDate(identity.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        identity.TokenID,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", models.Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session token")
	}
	return signed, identity, nil
}

// Validate verifies signature, issuer and expiry and returns the identity.
func (s *Service) Validate(raw string) (models.Identity, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "session has expired")
		}
		return models.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return models.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	principalID, err := domain.ParsePrincipalID(claims.Subject)
	if err != nil {
		return models.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session subject")
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return models.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session role")
	}

	return models.Identity{
		PrincipalID: principalID,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
		Role:        role,
		TokenID:     claims.ID,
		ExpiresAt:   claims.ExpiresAt.Time.UTC(),
	}, nil
}
