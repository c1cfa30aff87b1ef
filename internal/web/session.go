package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	authModels "incorp/internal/auth/models"
	"incorp/pkg/domain"
	"incorp/pkg/requestcontext"
)

// Session is what a view knows about its caller. The zero value is an
// anonymous visitor whose SignOut does nothing.
type Session struct {
	Identity *authModels.Identity
	SignOut  func(ctx context.Context) error
}

// SignedIn reports whether a principal is present.
func (s Session) SignedIn() bool {
	return s.Identity != nil
}

// IsAdmin reports whether the principal holds the admin role.
func (s Session) IsAdmin() bool {
	return s.Identity != nil && s.Identity.Role == domain.RoleAdmin
}

// DisplayName falls back to the email when no name was recorded.
func (s Session) DisplayName() string {
	if s.Identity == nil {
		return ""
	}
	if s.Identity.DisplayName != "" {
		return s.Identity.DisplayName
	}
	return s.Identity.Email
}

// DashboardPath is where the nav shell's dashboard link points.
func (s Session) DashboardPath() string {
	if s.IsAdmin() {
		return "/admin"
	}
	return "/client"
}

// Principal is the identity stores evaluate their row policy against.
func (s Session) Principal() requestcontext.Principal {
	if s.Identity == nil {
		return requestcontext.Principal{}
	}
	return requestcontext.Principal{ID: s.Identity.PrincipalID, Role: s.Identity.Role}
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

const defaultCookieName = "portal_session"

// AuthContext resolves sessions from the request cookie. It is built once at
// startup and handed to the router; views receive the resolved Session as an
// argument and never look it up themselves.
type AuthContext struct {
	auth   Authenticator
	cookie CookieConfig
	logger *slog.Logger
}

// NewAuthContext wires the session resolver to the auth service.
func NewAuthContext(auth Authenticator, cookie CookieConfig, logger *slog.Logger) *AuthContext {
	if cookie.Name == "" {
		cookie.Name = defaultCookieName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthContext{auth: auth, cookie: cookie, logger: logger}
}

func anonymous() Session {
	return Session{SignOut: func(context.Context) error { return nil }}
}

// Resolve returns the caller's Session. A missing, invalid, expired, or
// revoked token yields the anonymous session.
func (a *AuthContext) Resolve(r *http.Request) Session {
	raw, ok := a.readCookie(r)
	if !ok {
		return anonymous()
	}
	ctx := r.Context()
	identity, err := a.auth.Authenticate(ctx, raw)
	if err != nil {
		a.logger.DebugContext(ctx, "session rejected",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return anonymous()
	}
	return Session{
		Identity: identity,
		SignOut: func(ctx context.Context) error {
			return a.auth.SignOut(ctx, raw)
		},
	}
}

// SignIn verifies credentials and sets the session cookie.
func (a *AuthContext) SignIn(w http.ResponseWriter, r *http.Request, email, password string) (*authModels.Identity, error) {
	res, err := a.auth.SignIn(r.Context(), email, password)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookie.Name,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		Secure:   a.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return &res.Identity, nil
}

// ClearCookie expires the session cookie.
func (a *AuthContext) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *AuthContext) readCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(a.cookie.Name)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	return v, v != ""
}
