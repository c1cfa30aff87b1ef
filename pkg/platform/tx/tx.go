// Package tx runs store work inside a Postgres transaction that carries the
// caller's identity for row-level security policies.
package tx

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"incorp/pkg/platform/sentinel"
	"incorp/pkg/requestcontext"
)

// Setting names read by the table policies through current_setting().
const (
	SettingPrincipalID   = "app.principal_id"
	SettingPrincipalRole = "app.principal_role"
)

const setPrincipalSQL = "SELECT set_config('" + SettingPrincipalID + "', $1, true), set_config('" + SettingPrincipalRole + "', $2, true)"

// Runner opens principal-scoped transactions on one pool.
type Runner struct {
	db   *sqlx.DB
	role string
}

// NewRunner returns a Runner that switches to role (SET LOCAL ROLE) at the
// start of every transaction. An empty role keeps the login role, which only
// sees policies applied when it does not own the table or FORCE is set.
func NewRunner(db *sqlx.DB, role string) *Runner {
	return &Runner{db: db, role: role}
}

// Run executes fn in a transaction whose settings identify the principal in
// ctx. An anonymous caller runs with both settings empty. fn's error aborts
// the transaction and is returned unchanged. Deadlines come from ctx only.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if r.role != "" {
		if _, err := tx.ExecContext(ctx, "SET LOCAL ROLE "+pq.QuoteIdentifier(r.role)); err != nil {
			return fmt.Errorf("set role: %w: %w", sentinel.ErrUnavailable, err)
		}
	}

	p := requestcontext.PrincipalFrom(ctx)
	principalID := ""
	if !p.IsAnonymous() {
		principalID = p.ID.String()
	}
	if _, err := tx.ExecContext(ctx, setPrincipalSQL, principalID, string(p.Role)); err != nil {
		return fmt.Errorf("set principal: %w: %w", sentinel.ErrUnavailable, err)
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", Classify(err))
	}
	return nil
}

// Classify maps a driver error onto a sentinel: constraint and policy
// violations become ErrRejected, everything else ErrUnavailable. Sentinels
// pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, s := range []error{sentinel.ErrNotFound, sentinel.ErrRejected, sentinel.ErrUnavailable, sentinel.ErrConflict} {
		if errors.Is(err, s) {
			return err
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
		case pqErr.Code.Class() == "23", pqErr.Code == "42501":
			return fmt.Errorf("%w: %w", sentinel.ErrRejected, err)
		}
	}
	return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
}
