package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	authModels "incorp/internal/auth/models"
	"incorp/internal/intake/models"
	"incorp/internal/platform/logger"
	"incorp/internal/web/mocks"
	"incorp/pkg/domain"
	dErrors "incorp/pkg/domain-errors"
	"incorp/pkg/requestcontext"
	"incorp/pkg/testutil"
)

const sessionToken = "signed-session-token"

// =============================================================================
// Portal Router Test Suite
// =============================================================================
// Drives the route table end to end with mocked auth and repository.

type RouterSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	auth     *mocks.MockAuthenticator
	requests *mocks.MockRequests
	handlers *mocks.MockHandlerLister
	router   http.Handler
	handler  authModels.Identity
	admin    authModels.Identity
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.auth = mocks.NewMockAuthenticator(s.ctrl)
	s.requests = mocks.NewMockRequests(s.ctrl)
	s.handlers = mocks.NewMockHandlerLister(s.ctrl)

	authCtx := NewAuthContext(s.auth, CookieConfig{}, logger.Discard())
	srv, err := New(authCtx, s.requests, s.handlers,
		WithLogger(logger.Discard()),
		WithHealthCheck("store", func(context.Context) error { return nil }),
	)
	s.Require().NoError(err)
	s.router = srv.Handler()

	s.handler = authModels.Identity{
		PrincipalID: domain.PrincipalID(uuid.New()),
		DisplayName: "Grace Handler",
		Email:       "grace@example.com",
		Role:        domain.RoleHandler,
		TokenID:     uuid.NewString(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	s.admin = authModels.Identity{
		PrincipalID: domain.PrincipalID(uuid.New()),
		DisplayName: "Ada Admin",
		Email:       "ada@example.com",
		Role:        domain.RoleAdmin,
		TokenID:     uuid.NewString(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

// signedInAs attaches a session cookie unique to id, so several identities can
// be used within one test.
func (s *RouterSuite) signedInAs(req *http.Request, id authModels.Identity) *http.Request {
	token := sessionToken + "." + id.PrincipalID.String()
	req.AddCookie(&http.Cookie{Name: defaultCookieName, Value: token})
	s.auth.EXPECT().Authenticate(gomock.Any(), token).Return(&id, nil).AnyTimes()
	return req
}

func (s *RouterSuite) TestNavigationShell() {
	s.Run("anonymous visitors see register and login links", func() {
		rr := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/", nil))

		testutil.AssertStatusOK(s.T(), rr)
		body := rr.Body.String()
		s.Contains(body, "Register Company")
		s.Contains(body, `href="/login"`)
		s.NotContains(body, "Sign Out")
	})

	s.Run("signed-in principals see their name, dashboard and sign out", func() {
		req := s.signedInAs(httptest.NewRequest(http.MethodGet, "/", nil), s.handler)

		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		body := rr.Body.String()
		s.Contains(body, "Grace Handler")
		s.Contains(body, `href="/client"`)
		s.Contains(body, "Sign Out")
		s.NotContains(body, "Register Company")
	})

	s.Run("an invalid session token is treated as anonymous", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: defaultCookieName, Value: "forged"})
		s.auth.EXPECT().Authenticate(gomock.Any(), "forged").
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token"))

		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		s.Contains(rr.Body.String(), "Register Company")
	})
}

func (s *RouterSuite) TestRegister() {
	valid := url.Values{
		"owner_name":    {"Ada Lovelace"},
		"phone_number":  {"555-0100"},
		"company_name":  {"Analytical Engines Ltd"},
		"address":       {"12 St James's Square"},
		"business_type": {"llc"},
	}

	s.Run("valid submission stores the request and clears the form", func() {
		s.requests.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, sub models.Submission) error {
				s.Equal("llc", sub.BusinessType)
				s.Equal("Analytical Engines Ltd", sub.CompanyName)
				return nil
			})

		rr := testutil.DoRequest(s.router, testutil.NewFormRequest(http.MethodPost, "/register", valid))

		testutil.AssertStatusOK(s.T(), rr)
		body := rr.Body.String()
		s.Contains(body, "Registration submitted successfully!")
		s.NotContains(body, "Analytical Engines Ltd")
	})

	s.Run("missing owner name is rejected inline without a store call", func() {
		s.requests.EXPECT().Submit(gomock.Any(), gomock.Any()).Times(0)
		values := url.Values{}
		for k, v := range valid {
			values[k] = v
		}
		values.Set("owner_name", "")

		rr := testutil.DoRequest(s.router, testutil.NewFormRequest(http.MethodPost, "/register", values))

		testutil.AssertStatus(s.T(), rr, http.StatusUnprocessableEntity)
		body := rr.Body.String()
		s.Contains(body, "Owner name is required")
		s.Contains(body, "Analytical Engines Ltd")
	})

	s.Run("store failure keeps the values and shows the retry message", func() {
		s.requests.EXPECT().Submit(gomock.Any(), gomock.Any()).
			Return(dErrors.Wrap(errors.New("down"), dErrors.CodeStore, "failed to store request"))

		rr := testutil.DoRequest(s.router, testutil.NewFormRequest(http.MethodPost, "/register", valid))

		testutil.AssertStatus(s.T(), rr, http.StatusBadGateway)
		body := rr.Body.String()
		s.Contains(body, "Failed to submit registration. Please try again.")
		s.Contains(body, "Analytical Engines Ltd")
	})
}

func (s *RouterSuite) TestLogin() {
	s.Run("bad credentials show a generic error", func() {
		s.auth.EXPECT().SignIn(gomock.Any(), "grace@example.com", "wrong").
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password"))

		rr := testutil.DoRequest(s.router, testutil.NewFormRequest(http.MethodPost, "/login",
			url.Values{"email": {"grace@example.com"}, "password": {"wrong"}}))

		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
		s.Contains(rr.Body.String(), "Invalid email or password")
		s.Empty(rr.Result().Cookies())
	})

	s.Run("repeated failures lock the form", func() {
		s.auth.EXPECT().SignIn(gomock.Any(), "grace@example.com", "guess").
			Return(nil, dErrors.New(dErrors.CodeRateLimited, "too many failed sign-in attempts"))

		rr := testutil.DoRequest(s.router, testutil.NewFormRequest(http.MethodPost, "/login",
			url.Values{"email": {"grace@example.com"}, "password": {"guess"}}))

		testutil.AssertStatus(s.T(), rr, http.StatusTooManyRequests)
		s.Contains(rr.Body.String(), "Too many failed sign-in attempts")
		s.Empty(rr.Result().Cookies())
	})

	s.Run("valid credentials set the session cookie and open the dashboard", func() {
		s.auth.EXPECT().SignIn(gomock.Any(), "grace@example.com", "correct horse").
			Return(&authModels.SignInResult{
				Token:     sessionToken,
				ExpiresAt: s.handler.ExpiresAt,
				Identity:  s.handler,
			}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewFormRequest(http.MethodPost, "/login",
			url.Values{"email": {"grace@example.com"}, "password": {"correct horse"}}))

		testutil.AssertRedirect(s.T(), rr, "/client")
		cookies := rr.Result().Cookies()
		s.Require().Len(cookies, 1)
		s.Equal(defaultCookieName, cookies[0].Name)
		s.Equal(sessionToken, cookies[0].Value)
		s.True(cookies[0].HttpOnly)
	})

	s.Run("admins land on the admin board", func() {
		s.auth.EXPECT().SignIn(gomock.Any(), "ada@example.com", "pw").
			Return(&authModels.SignInResult{Token: "t", ExpiresAt: s.admin.ExpiresAt, Identity: s.admin}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewFormRequest(http.MethodPost, "/login",
			url.Values{"email": {"ada@example.com"}, "password": {"pw"}}))

		testutil.AssertRedirect(s.T(), rr, "/admin")
	})
}

func (s *RouterSuite) TestLogout() {
	req := s.signedInAs(httptest.NewRequest(http.MethodPost, "/logout", nil), s.handler)
	s.auth.EXPECT().SignOut(gomock.Any(), sessionToken).Return(nil).Times(1)

	rr := testutil.DoRequest(s.router, req)

	testutil.AssertRedirect(s.T(), rr, "/")
	cookies := rr.Result().Cookies()
	s.Require().Len(cookies, 1)
	s.Equal(-1, cookies[0].MaxAge)
}

func (s *RouterSuite) TestClientBoard() {
	s.Run("anonymous visitors are redirected to login without a fetch", func() {
		s.requests.EXPECT().ListAssigned(gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/client", nil))

		testutil.AssertRedirect(s.T(), rr, "/login")
	})

	s.Run("assigned requests render newest first with the principal on the context", func() {
		newer := card("Jan Five Ltd", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), domain.RequestStatusPending)
		older := card("Jan Two Ltd", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), domain.RequestStatusPending)
		s.requests.EXPECT().ListAssigned(gomock.Any(), s.handler.PrincipalID).DoAndReturn(
			func(ctx context.Context, _ domain.PrincipalID) ([]*models.IncorporationRequest, error) {
				p := requestcontext.PrincipalFrom(ctx)
				s.Equal(s.handler.PrincipalID, p.ID)
				s.Equal(domain.RoleHandler, p.Role)
				return []*models.IncorporationRequest{newer, older}, nil
			}).Times(1)

		rr := testutil.DoRequest(s.router, s.signedInAs(httptest.NewRequest(http.MethodGet, "/client", nil), s.handler))

		testutil.AssertStatusOK(s.T(), rr)
		body := rr.Body.String()
		s.Less(strings.Index(body, "Jan Five Ltd"), strings.Index(body, "Jan Two Ltd"))
		s.Contains(body, `data-state="populated"`)
	})

	s.Run("no assignments render the empty state", func() {
		s.requests.EXPECT().ListAssigned(gomock.Any(), s.handler.PrincipalID).Return([]*models.IncorporationRequest{}, nil)

		rr := testutil.DoRequest(s.router, s.signedInAs(httptest.NewRequest(http.MethodGet, "/client", nil), s.handler))

		testutil.AssertStatusOK(s.T(), rr)
		s.Contains(rr.Body.String(), "No requests assigned")
	})
}

func (s *RouterSuite) TestClientStatus() {
	id := domain.RequestID(uuid.New())
	path := "/client/requests/" + id.String() + "/status"

	s.Run("json update returns the new status", func() {
		s.requests.EXPECT().UpdateStatus(gomock.Any(), id, domain.RequestStatusCompleted).Return(nil).Times(1)
		req := testutil.NewFetchRequest(http.MethodPost, path, url.Values{"status": {"completed"}})

		rr := testutil.DoRequest(s.router, s.signedInAs(req, s.handler))

		testutil.AssertStatusOK(s.T(), rr)
		got := testutil.UnmarshalResponse[statusResponse](s.T(), rr)
		s.Equal(id.String(), got.ID)
		s.Equal("completed", got.Status)
	})

	s.Run("json update failure returns the error envelope", func() {
		s.requests.EXPECT().UpdateStatus(gomock.Any(), id, domain.RequestStatusCompleted).
			Return(dErrors.Wrap(errors.New("pq: no rows"), dErrors.CodeStore, "failed to update status"))
		req := testutil.NewFetchRequest(http.MethodPost, path, url.Values{"status": {"completed"}})

		rr := testutil.DoRequest(s.router, s.signedInAs(req, s.handler))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadGateway, "store_error")
	})

	s.Run("unknown status is rejected before the repository", func() {
		s.requests.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		req := testutil.NewFetchRequest(http.MethodPost, path, url.Values{"status": {"archived"}})

		rr := testutil.DoRequest(s.router, s.signedInAs(req, s.handler))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("form post re-renders from one fetch with only that card changed", func() {
		target := card("Target Ltd", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), domain.RequestStatusPending)
		target.ID = id
		other := card("Other Ltd", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), domain.RequestStatusInProgress)
		gomock.InOrder(
			s.requests.EXPECT().ListAssigned(gomock.Any(), s.handler.PrincipalID).
				Return([]*models.IncorporationRequest{target, other}, nil).Times(1),
			s.requests.EXPECT().UpdateStatus(gomock.Any(), id, domain.RequestStatusCompleted).Return(nil).Times(1),
		)

		rr := testutil.DoRequest(s.router, s.signedInAs(testutil.NewFormRequest(http.MethodPost, path, url.Values{"status": {"completed"}}), s.handler))

		testutil.AssertStatusOK(s.T(), rr)
		s.Equal(domain.RequestStatusCompleted, target.Status)
		s.Equal(domain.RequestStatusInProgress, other.Status)
		s.NotContains(rr.Body.String(), "Failed to update status")
	})

	s.Run("anonymous json calls get 401", func() {
		req := testutil.NewFetchRequest(http.MethodPost, path, url.Values{"status": {"completed"}})

		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})
}

func (s *RouterSuite) TestAdminBoard() {
	s.Run("handlers are forbidden", func() {
		s.requests.EXPECT().ListAll(gomock.Any()).Times(0)

		rr := testutil.DoRequest(s.router, s.signedInAs(httptest.NewRequest(http.MethodGet, "/admin", nil), s.handler))

		testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
		s.Contains(rr.Body.String(), "Access denied")
	})

	s.Run("admins see every request with the handler picker", func() {
		req := card("Listed Ltd", time.Now(), domain.RequestStatusPending)
		s.requests.EXPECT().ListAll(gomock.Any()).Return([]*models.IncorporationRequest{req}, nil)
		s.handlers.EXPECT().ListHandlers(gomock.Any()).Return([]*authModels.Principal{{
			ID: s.handler.PrincipalID, DisplayName: "Grace Handler", Role: domain.RoleHandler,
		}}, nil)

		rr := testutil.DoRequest(s.router, s.signedInAs(httptest.NewRequest(http.MethodGet, "/admin", nil), s.admin))

		testutil.AssertStatusOK(s.T(), rr)
		body := rr.Body.String()
		s.Contains(body, "Listed Ltd")
		s.Contains(body, s.handler.PrincipalID.String())
	})
}

func (s *RouterSuite) TestAdminAssign() {
	req := card("Assignable Ltd", time.Now(), domain.RequestStatusPending)
	path := "/admin/requests/" + req.ID.String() + "/assign"

	s.requests.EXPECT().ListAll(gomock.Any()).Return([]*models.IncorporationRequest{req}, nil)
	s.handlers.EXPECT().ListHandlers(gomock.Any()).Return([]*authModels.Principal{{
		ID: s.handler.PrincipalID, DisplayName: "Grace Handler", Role: domain.RoleHandler,
	}}, nil)
	s.requests.EXPECT().Assign(gomock.Any(), req.ID, s.handler.PrincipalID).Return(nil).Times(1)

	rr := testutil.DoRequest(s.router, s.signedInAs(
		testutil.NewFormRequest(http.MethodPost, path, url.Values{"assignee": {s.handler.PrincipalID.String()}}), s.admin))

	testutil.AssertStatusOK(s.T(), rr)
	s.Require().NotNil(req.AssignedTo)
	s.Equal(s.handler.PrincipalID, *req.AssignedTo)
	s.NotContains(rr.Body.String(), AlertAssignFailed)
}

func TestHealthz(t *testing.T) {
	ctrl := gomock.NewController(t)
	authCtx := NewAuthContext(mocks.NewMockAuthenticator(ctrl), CookieConfig{}, logger.Discard())
	srv, err := New(authCtx, mocks.NewMockRequests(ctrl), mocks.NewMockHandlerLister(ctrl),
		WithLogger(logger.Discard()),
		WithHealthCheck("redis", func(context.Context) error { return errors.New("dial tcp: refused") }),
	)
	require.NoError(t, err)

	rr := testutil.DoRequest(srv.Handler(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"redis":"unavailable"`)
}

func TestStaticAssetsAreServed(t *testing.T) {
	ctrl := gomock.NewController(t)
	authCtx := NewAuthContext(mocks.NewMockAuthenticator(ctrl), CookieConfig{}, logger.Discard())
	srv, err := New(authCtx, mocks.NewMockRequests(ctrl), mocks.NewMockHandlerLister(ctrl))
	require.NoError(t, err)

	rr := testutil.DoRequest(srv.Handler(), httptest.NewRequest(http.MethodGet, "/static/app.js", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Failed to update status")
}
