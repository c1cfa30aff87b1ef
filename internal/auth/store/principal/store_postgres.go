package principal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"incorp/internal/auth/models"
	"incorp/pkg/domain"
	"incorp/pkg/platform/sentinel"
	"incorp/pkg/platform/tx"
)

const principalsTable = "principals"

var principalColumns = []string{"id", "email", "display_name", "password_hash", "role", "created_at"}

type principalRow struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	DisplayName  string    `db:"display_name"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r principalRow) toModel() *models.Principal {
	return &models.Principal{
		ID:           domain.PrincipalID(r.ID),
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		PasswordHash: r.PasswordHash,
		Role:         domain.Role(r.Role),
		CreatedAt:    r.CreatedAt,
	}
}

// Postgres persists principals. The table carries no row policy; it is read
// with the login role.
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, p *models.Principal) error {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(principalsTable)
	ib.Cols(principalColumns...)
	ib.Values(uuid.UUID(p.ID), models.NormalizeEmail(p.Email), p.DisplayName, p.PasswordHash, string(p.Role), p.CreatedAt)
	query, args := ib.Build()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create principal: %w", tx.Classify(err))
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.PrincipalID) (*models.Principal, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(principalColumns...)
	sb.From(principalsTable)
	sb.Where(sb.Equal("id", uuid.UUID(id)))
	return s.getOne(ctx, sb, "find principal by id")
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(principalColumns...)
	sb.From(principalsTable)
	sb.Where(sb.Equal("lower(email)", models.NormalizeEmail(email)))
	return s.getOne(ctx, sb, "find principal by email")
}

func (s *Postgres) getOne(ctx context.Context, sb *sqlbuilder.SelectBuilder, op string) (*models.Principal, error) {
	query, args := sb.Build()
	var row principalRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, tx.Classify(err))
	}
	return row.toModel(), nil
}

func (s *Postgres) ListByRole(ctx context.Context, role domain.Role) ([]*models.Principal, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(principalColumns...)
	sb.From(principalsTable)
	sb.Where(sb.Equal("role", string(role)))
	sb.OrderBy("display_name", "email")
	query, args := sb.Build()

	var rows []principalRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list principals: %w", tx.Classify(err))
	}
	out := make([]*models.Principal, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}
