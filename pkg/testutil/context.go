package testutil

import (
	"context"
	"net/http"

	"incorp/pkg/domain"
	"incorp/pkg/requestcontext"
)

// AsPrincipal returns a context carrying the given identity.
// This simulates what the session middleware does for signed-in requests.
func AsPrincipal(ctx context.Context, id domain.PrincipalID, role domain.Role) context.Context {
	return requestcontext.WithPrincipal(ctx, requestcontext.Principal{ID: id, Role: role})
}

// AsAdmin is AsPrincipal with the admin role.
func AsAdmin(ctx context.Context, id domain.PrincipalID) context.Context {
	return AsPrincipal(ctx, id, domain.RoleAdmin)
}

// AsHandler is AsPrincipal with the handler role.
func AsHandler(ctx context.Context, id domain.PrincipalID) context.Context {
	return AsPrincipal(ctx, id, domain.RoleHandler)
}

// WithPrincipal adds a principal to the request context.
// If the id is not a valid UUID, the request is returned unchanged.
func WithPrincipal(req *http.Request, id string, role domain.Role) *http.Request {
	pid, err := domain.ParsePrincipalID(id)
	if err != nil {
		return req
	}
	return req.WithContext(AsPrincipal(req.Context(), pid, role))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
