package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"incorp/pkg/domain"
	dErrors "incorp/pkg/domain-errors"
	"incorp/pkg/platform/httputil"
	"incorp/pkg/requestcontext"
)

// LoginFailed is the only sign-in error a visitor sees.
const LoginFailed = "Invalid email or password"

// LoginLockedOut is shown while repeated failures block the sign-in.
const LoginLockedOut = "Too many failed sign-in attempts. Please try again later."

const loginUnavailable = "Sign-in is temporarily unavailable. Please try again."

var errForbidden = dErrors.New(dErrors.CodeForbidden, "admin role required")

type loginView struct {
	Email string
	Error string
}

type statusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *Server) home(w http.ResponseWriter, r *http.Request, session Session) {
	s.render.render(w, r, http.StatusOK, "home", page{Title: "Home", Session: session})
}

func (s *Server) registerForm(w http.ResponseWriter, r *http.Request, session Session) {
	s.render.render(w, r, http.StatusOK, "register", page{
		Title:   "Register Company",
		Session: session,
		Body:    EmptyForm(),
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, session Session) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, session, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed form"))
		return
	}
	outcome := s.submission.Submit(r.Context(), FormValues(r.PostForm))

	status := http.StatusOK
	switch {
	case outcome.Invalid():
		status = http.StatusUnprocessableEntity
	case outcome.Failed():
		status = http.StatusBadGateway
	}
	s.render.render(w, r, status, "register", page{
		Title:   "Register Company",
		Session: session,
		Flash:   outcome.Flash,
		Body:    outcome.Form,
	})
}

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request, session Session) {
	if session.SignedIn() {
		http.Redirect(w, r, session.DashboardPath(), http.StatusSeeOther)
		return
	}
	s.render.render(w, r, http.StatusOK, "login", page{Title: "Login", Session: session, Body: loginView{}})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, session Session) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, session, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed form"))
		return
	}
	email := r.PostForm.Get("email")
	identity, err := s.auth.SignIn(w, r, email, r.PostForm.Get("password"))
	if err != nil {
		view := loginView{Email: email, Error: LoginFailed}
		status := http.StatusUnauthorized
		switch {
		case dErrors.HasCode(err, dErrors.CodeUnauthorized):
		case dErrors.HasCode(err, dErrors.CodeRateLimited):
			view.Error = LoginLockedOut
			status = http.StatusTooManyRequests
		default:
			s.logger.ErrorContext(r.Context(), "sign-in failed",
				"error", err,
				"request_id", requestcontext.RequestID(r.Context()),
			)
			view.Error = loginUnavailable
			status = http.StatusServiceUnavailable
		}
		s.render.render(w, r, status, "login", page{Title: "Login", Session: session, Body: view})
		return
	}
	http.Redirect(w, r, Session{Identity: identity}.DashboardPath(), http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request, session Session) {
	if err := session.SignOut(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "sign-out failed",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
	}
	s.auth.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) clientBoard(w http.ResponseWriter, r *http.Request, session Session) {
	board := NewAssignmentBoard(s.requests, s.logger)
	if err := board.Mount(r.Context(), session); err != nil {
		s.fail(w, r, session, err)
		return
	}
	s.renderClient(w, r, http.StatusOK, session, board)
}

func (s *Server) clientStatus(w http.ResponseWriter, r *http.Request, session Session) {
	board := NewAssignmentBoard(s.requests, s.logger)
	s.changeStatus(w, r, session, board, func(code int) {
		s.renderClient(w, r, code, session, board)
	})
}

func (s *Server) renderClient(w http.ResponseWriter, r *http.Request, code int, session Session, board *AssignmentBoard) {
	s.render.render(w, r, code, "client", page{
		Title:   "Your Assigned Requests",
		Session: session,
		Alert:   board.Alert,
		Body:    board,
	})
}

func (s *Server) adminBoard(w http.ResponseWriter, r *http.Request, session Session) {
	board := NewAdminBoard(s.requests, s.handlers, s.logger)
	if err := board.Mount(r.Context(), session); err != nil {
		s.fail(w, r, session, err)
		return
	}
	s.renderAdmin(w, r, http.StatusOK, session, board)
}

func (s *Server) adminStatus(w http.ResponseWriter, r *http.Request, session Session) {
	board := NewAdminBoard(s.requests, s.handlers, s.logger)
	s.changeStatus(w, r, session, board, func(code int) {
		s.renderAdmin(w, r, code, session, board)
	})
}

func (s *Server) adminAssign(w http.ResponseWriter, r *http.Request, session Session) {
	board := NewAdminBoard(s.requests, s.handlers, s.logger)
	if err := board.Mount(r.Context(), session); err != nil {
		s.fail(w, r, session, err)
		return
	}

	code := http.StatusOK
	id, idErr := domain.ParseRequestID(chi.URLParam(r, "id"))
	assignee, assigneeErr := domain.ParsePrincipalID(r.FormValue("assignee"))
	if idErr != nil || assigneeErr != nil {
		board.Alert = AlertAssignFailed
		code = http.StatusBadRequest
	} else if err := board.Assign(r.Context(), id, assignee); err != nil {
		code = dErrors.ToHTTPStatus(dErrors.CodeOf(err))
	}
	s.renderAdmin(w, r, code, session, board)
}

func (s *Server) renderAdmin(w http.ResponseWriter, r *http.Request, code int, session Session, board *AdminBoard) {
	s.render.render(w, r, code, "admin", page{
		Title:   "All Requests",
		Session: session,
		Alert:   board.Alert,
		Body:    board,
	})
}

// statusBoard is a dashboard that can relabel one of its cards.
type statusBoard interface {
	Mount(ctx context.Context, session Session) error
	ChangeStatus(ctx context.Context, id domain.RequestID, status domain.RequestStatus) error
	alert(message string)
}

// changeStatus answers the dashboard script with JSON. Without JavaScript the
// board is mounted once, the change is applied to that copy, and the page is
// rendered from it.
func (s *Server) changeStatus(w http.ResponseWriter, r *http.Request, session Session, board statusBoard, render func(code int)) {
	id, status, inputErr := statusInput(r)

	if wantsJSON(r) {
		if inputErr != nil {
			httputil.WriteError(w, inputErr)
			return
		}
		if err := board.ChangeStatus(r.Context(), id, status); err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, statusResponse{ID: id.String(), Status: string(status)})
		return
	}

	if err := board.Mount(r.Context(), session); err != nil {
		s.fail(w, r, session, err)
		return
	}
	code := http.StatusOK
	if inputErr != nil {
		board.alert(AlertStatusUpdateFailed)
		code = dErrors.ToHTTPStatus(dErrors.CodeOf(inputErr))
	} else if err := board.ChangeStatus(r.Context(), id, status); err != nil {
		code = dErrors.ToHTTPStatus(dErrors.CodeOf(err))
	}
	render(code)
}

func statusInput(r *http.Request) (domain.RequestID, domain.RequestStatus, error) {
	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		return domain.RequestID{}, "", err
	}
	status, err := domain.ParseRequestStatus(r.FormValue("status"))
	if err != nil {
		return domain.RequestID{}, "", err
	}
	return id, status, nil
}

// fail answers a view error. Missing sign-in redirects browsers to the login
// page; everything else renders a generic error page, or the JSON error
// envelope for script calls.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, session Session, err error) {
	if errors.Is(err, ErrAuthRequired) {
		if wantsJSON(r) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "sign-in required"))
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if wantsJSON(r) {
		httputil.WriteError(w, err)
		return
	}
	code := dErrors.CodeOf(err)
	title, message := "Something went wrong", "Please try again later."
	switch code {
	case dErrors.CodeForbidden:
		title, message = "Access denied", "You do not have access to this page."
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeValidation:
		title, message = "Bad request", "The request could not be understood."
	}
	s.render.render(w, r, dErrors.ToHTTPStatus(code), "error", page{
		Title:   title,
		Session: session,
		Body:    message,
	})
}
