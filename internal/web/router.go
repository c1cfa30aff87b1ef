// Package web renders the portal: the public registration form, sign-in, and
// the handler and admin dashboards.
//
// Routing is a plain table. Every entry names the access it requires; the
// adapter resolves the caller's Session once, puts the principal on the
// request context for the stores' row policy, enforces access, and passes the
// Session to the view as an argument.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"incorp/pkg/platform/httputil"
	"incorp/pkg/platform/middleware/metadata"
	"incorp/pkg/platform/middleware/request"
	"incorp/pkg/platform/middleware/requesttime"
	"incorp/pkg/requestcontext"
)

type access int

const (
	public access = iota
	signedIn
	adminOnly
)

type view func(w http.ResponseWriter, r *http.Request, session Session)

type route struct {
	method  string
	pattern string
	access  access
	view    view
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// Server is the portal's HTTP surface.
type Server struct {
	auth       *AuthContext
	requests   Requests
	handlers   HandlerLister
	submission *SubmissionFlow
	render     *renderer
	logger     *slog.Logger

	metrics    http.Handler
	middleware []func(http.Handler) http.Handler
	health     map[string]HealthCheck
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler exposes h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithMiddleware appends middleware that runs after request metadata is set.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(s *Server) {
		s.middleware = append(s.middleware, mw...)
	}
}

// WithHealthCheck adds a dependency probe to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.health[name] = check
	}
}

// New builds the portal server. auth is constructed once by the caller and
// shared by every request.
func New(auth *AuthContext, requests Requests, handlers HandlerLister, opts ...Option) (*Server, error) {
	if auth == nil {
		return nil, errors.New("auth context is required")
	}
	if requests == nil {
		return nil, errors.New("request repository is required")
	}
	if handlers == nil {
		return nil, errors.New("handler directory is required")
	}
	s := &Server{
		auth:     auth,
		requests: requests,
		handlers: handlers,
		logger:   slog.Default(),
		health:   map[string]HealthCheck{},
	}
	for _, opt := range opts {
		opt(s)
	}
	r, err := newRenderer(s.logger)
	if err != nil {
		return nil, err
	}
	s.render = r
	s.submission = NewSubmissionFlow(requests, s.logger)
	return s, nil
}

func (s *Server) routes() []route {
	return []route{
		{http.MethodGet, "/", public, s.home},
		{http.MethodGet, "/register", public, s.registerForm},
		{http.MethodPost, "/register", public, s.register},
		{http.MethodGet, "/login", public, s.loginForm},
		{http.MethodPost, "/login", public, s.login},
		{http.MethodPost, "/logout", public, s.logout},
		{http.MethodGet, "/client", signedIn, s.clientBoard},
		{http.MethodPost, "/client/requests/{id}/status", signedIn, s.clientStatus},
		{http.MethodGet, "/admin", adminOnly, s.adminBoard},
		{http.MethodPost, "/admin/requests/{id}/assign", adminOnly, s.adminAssign},
		{http.MethodPost, "/admin/requests/{id}/status", adminOnly, s.adminStatus},
	}
}

// Handler returns the routed portal with its middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	for _, mw := range s.middleware {
		r.Use(mw)
	}

	for _, rt := range s.routes() {
		r.Method(rt.method, rt.pattern, s.adapt(rt))
	}
	r.Get("/healthz", s.healthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Handle("/static/*", staticFiles())
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		s.render.render(w, req, http.StatusNotFound, "error", page{
			Title:   "Page not found",
			Session: s.auth.Resolve(req),
			Body:    "The page you were looking for does not exist.",
		})
	})
	return r
}

func (s *Server) adapt(rt route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := s.auth.Resolve(r)
		r = r.WithContext(requestcontext.WithPrincipal(r.Context(), session.Principal()))

		switch rt.access {
		case signedIn:
			if !session.SignedIn() {
				s.fail(w, r, session, ErrAuthRequired)
				return
			}
		case adminOnly:
			if !session.SignedIn() {
				s.fail(w, r, session, ErrAuthRequired)
				return
			}
			if !session.IsAdmin() {
				s.fail(w, r, session, errForbidden)
				return
			}
		}
		rt.view(w, r, session)
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	failed := map[string]string{}
	for name, check := range s.health {
		if err := check(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "health check failed",
				"check", name,
				"error", err,
				"request_id", requestcontext.RequestID(r.Context()),
			)
			failed[name] = "unavailable"
		}
	}
	if len(failed) > 0 {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// wantsJSON is true for the dashboard script's fetch calls.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
