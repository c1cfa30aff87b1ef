package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	authModels "incorp/internal/auth/models"
	"incorp/internal/platform/logger"
	"incorp/internal/web/mocks"
	"incorp/pkg/domain"
	dErrors "incorp/pkg/domain-errors"
)

func TestAuthContextResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("no cookie is anonymous and sign out is a no-op", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		auth := mocks.NewMockAuthenticator(ctrl)
		ac := NewAuthContext(auth, CookieConfig{Name: "sid"}, logger.Discard())

		session := ac.Resolve(httptest.NewRequest(http.MethodGet, "/", nil))

		assert.False(t, session.SignedIn())
		assert.True(t, session.Principal().IsAnonymous())
		assert.NoError(t, session.SignOut(ctx))
	})

	t.Run("a valid token yields the identity and a bound sign out", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		auth := mocks.NewMockAuthenticator(ctrl)
		ac := NewAuthContext(auth, CookieConfig{Name: "sid"}, logger.Discard())
		identity := &authModels.Identity{
			PrincipalID: domain.PrincipalID(uuid.New()),
			Email:       "lin@example.com",
			Role:        domain.RoleAdmin,
		}
		auth.EXPECT().Authenticate(gomock.Any(), "tok").Return(identity, nil)
		auth.EXPECT().SignOut(gomock.Any(), "tok").Return(nil).Times(1)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "sid", Value: "tok"})
		session := ac.Resolve(req)

		require.True(t, session.SignedIn())
		assert.True(t, session.IsAdmin())
		assert.Equal(t, "lin@example.com", session.DisplayName())
		assert.Equal(t, "/admin", session.DashboardPath())
		assert.Equal(t, identity.PrincipalID, session.Principal().ID)
		assert.NoError(t, session.SignOut(ctx))
	})

	t.Run("a revoked token is anonymous", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		auth := mocks.NewMockAuthenticator(ctrl)
		ac := NewAuthContext(auth, CookieConfig{Name: "sid"}, logger.Discard())
		auth.EXPECT().Authenticate(gomock.Any(), "tok").
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "session has been revoked"))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "sid", Value: "tok"})

		assert.False(t, ac.Resolve(req).SignedIn())
	})
}
