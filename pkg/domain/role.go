package domain

import dErrors "incorp/pkg/domain-errors"

// Role decides which rows the store's policy exposes to a principal.
type Role string

const (
	// RoleAdmin sees and updates every request, and assigns them.
	RoleAdmin Role = "admin"
	// RoleHandler sees and updates only requests assigned to them.
	RoleHandler Role = "handler"
)

// ParseRole constructs a Role from external input.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleHandler
}

func (r Role) String() string { return string(r) }
