package domain

import (
	"github.com/google/uuid"

	dErrors "incorp/pkg/domain-errors"
)

// RequestID identifies an incorporation request. The store assigns it on
// insert; it is never mutated afterwards.
type RequestID uuid.UUID

// PrincipalID identifies an authenticated principal (admin or client handler).
type PrincipalID uuid.UUID

// SessionID identifies one signed-in session (the token's jti).
type SessionID uuid.UUID

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return u, nil
}

// ParseRequestID parses a request ID from external input.
func ParseRequestID(s string) (RequestID, error) {
	u, err := parseUUID(s, "request id")
	return RequestID(u), err
}

// ParsePrincipalID parses a principal ID from external input.
func ParsePrincipalID(s string) (PrincipalID, error) {
	u, err := parseUUID(s, "principal id")
	return PrincipalID(u), err
}

// ParseSessionID parses a session ID from external input.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session id")
	return SessionID(u), err
}

func (id RequestID) String() string   { return uuid.UUID(id).String() }
func (id PrincipalID) String() string { return uuid.UUID(id).String() }
func (id SessionID) String() string   { return uuid.UUID(id).String() }

func (id RequestID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id PrincipalID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
