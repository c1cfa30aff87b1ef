package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incorp/internal/auth/models"
	"incorp/pkg/domain"
	dErrors "incorp/pkg/domain-errors"
)

var principal = &models.Principal{
	ID:          domain.PrincipalID(uuid.New()),
	Email:       "hal@example.com",
	DisplayName: "Hal",
	Role:        domain.RoleHandler,
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func Test_IssueAndValidate(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := New("test-signing-key", "test-issuer", time.Hour, WithClock(fixedClock(now)))

	raw, issued, err := svc.Issue(principal)
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	assert.NotEmpty(t, issued.TokenID)
	assert.Equal(t, now.Add(time.Hour), issued.ExpiresAt)

	got, err := svc.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, issued, got)
}

func Test_ValidateExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	issuer := New("test-signing-key", "test-issuer", time.Hour, WithClock(fixedClock(now)))
	raw, _, err := issuer.Issue(principal)
	require.NoError(t, err)

	later := New("test-signing-key", "test-issuer", time.Hour, WithClock(fixedClock(now.Add(2*time.Hour))))
	_, err = later.Validate(raw)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "session has expired"))
}

func Test_ValidateRejectsForeignTokens(t *testing.T) {
	svc := New("test-signing-key", "test-issuer", time.Hour)

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Validate("invalid-token-string")
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid session token"))
	})

	t.Run("other signing key", func(t *testing.T) {
		raw, _, err := New("other-key", "test-issuer", time.Hour).Issue(principal)
		require.NoError(t, err)
		_, err = svc.Validate(raw)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("other issuer", func(t *testing.T) {
		raw, _, err := New("test-signing-key", "someone-else", time.Hour).Issue(principal)
		require.NoError(t, err)
		_, err = svc.Validate(raw)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unknown role", func(t *testing.T) {
		claims := Claims{
			Role: "owner",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   uuid.NewString(),
				Issuer:    "test-issuer",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
		require.NoError(t, err)
		_, err = svc.Validate(raw)
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid session role"))
	})

	t.Run("missing expiry", func(t *testing.T) {
		claims := Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString(), Issuer: "test-issuer"}}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
		require.NoError(t, err)
		_, err = svc.Validate(raw)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
