package web

import (
	"context"

	authModels "incorp/internal/auth/models"
	"incorp/internal/intake/models"
	"incorp/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// Authenticator is the slice of the auth service the portal needs.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*authModels.SignInResult, error)
	Authenticate(ctx context.Context, raw string) (*authModels.Identity, error)
	SignOut(ctx context.Context, raw string) error
}

// Submitter stores public registrations.
type Submitter interface {
	Submit(ctx context.Context, sub models.Submission) error
}

// AssignedLister reads and updates the caller's assigned requests.
type AssignedLister interface {
	ListAssigned(ctx context.Context, principal domain.PrincipalID) ([]*models.IncorporationRequest, error)
	UpdateStatus(ctx context.Context, id domain.RequestID, status domain.RequestStatus) error
}

// RequestAdmin is the repository surface the admin board drives.
type RequestAdmin interface {
	ListAll(ctx context.Context) ([]*models.IncorporationRequest, error)
	UpdateStatus(ctx context.Context, id domain.RequestID, status domain.RequestStatus) error
	Assign(ctx context.Context, id domain.RequestID, principal domain.PrincipalID) error
}

// Requests is the request repository as the web layer sees it.
type Requests interface {
	Submitter
	AssignedLister
	RequestAdmin
}

// HandlerLister feeds the assignee picker.
type HandlerLister interface {
	ListHandlers(ctx context.Context) ([]*authModels.Principal, error)
}
