package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"incorp/pkg/domain"
	dErrors "incorp/pkg/domain-errors"
	"incorp/pkg/email"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	MaxPasswordLength = 72
)

var validate = validator.New()

// Principal is a staff account: an admin or a client handler.
type Principal struct {
	ID           domain.PrincipalID
	Email        string
	DisplayName  string
	PasswordHash string
	Role         domain.Role
	CreatedAt    time.Time
}

// NewPrincipal is the input for provisioning an account.
type NewPrincipal struct {
	Email       string
	DisplayName string
	Password    string
	Role        domain.Role
}

// Normalize trims input and lower-cases the email. A blank display name is
// derived from the email's local part.
func (n *NewPrincipal) Normalize() {
	n.Email = NormalizeEmail(n.Email)
	n.DisplayName = strings.TrimSpace(n.DisplayName)
	if n.DisplayName == "" {
		n.DisplayName = email.DisplayName(n.Email)
	}
}

func (n *NewPrincipal) Validate() error {
	if err := validate.Var(n.Email, "required,email"); err != nil {
		return dErrors.New(dErrors.CodeValidation, "a valid email is required")
	}
	if n.DisplayName == "" {
		return dErrors.New(dErrors.CodeValidation, "display name is required")
	}
	if len(n.Password) < MinPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if len(n.Password) > MaxPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at most 72 bytes")
	}
	if !n.Role.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "role must be admin or handler")
	}
	return nil
}

// NormalizeEmail is the lookup form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Identity is what a verified session token says about its bearer. It is
// resolved without another store read.
type Identity struct {
	PrincipalID domain.PrincipalID
	DisplayName string
	Email       string
	Role        domain.Role
	TokenID     string
	ExpiresAt   time.Time
}

// SignInResult carries the issued session token.
type SignInResult struct {
	Token     string
	ExpiresAt time.Time
	Identity  Identity
}
