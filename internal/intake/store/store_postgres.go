package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"incorp/internal/intake/models"
	"incorp/pkg/domain"
	"incorp/pkg/platform/sentinel"
	"incorp/pkg/platform/tx"
)

const requestsTable = "incorporation_requests"

var requestColumns = []string{
	"id", "owner_name", "phone_number", "company_name", "address",
	"business_type", "additional_details", "status", "assigned_to", "created_at",
}

type requestRow struct {
	ID                uuid.UUID     `db:"id"`
	OwnerName         string        `db:"owner_name"`
	PhoneNumber       string        `db:"phone_number"`
	CompanyName       string        `db:"company_name"`
	Address           string        `db:"address"`
	BusinessType      string        `db:"business_type"`
	AdditionalDetails string        `db:"additional_details"`
	Status            string        `db:"status"`
	AssignedTo        uuid.NullUUID `db:"assigned_to"`
	CreatedAt         time.Time     `db:"created_at"`
}

func (r requestRow) toModel() *models.IncorporationRequest {
	m := &models.IncorporationRequest{
		ID:                domain.RequestID(r.ID),
		OwnerName:         r.OwnerName,
		PhoneNumber:       r.PhoneNumber,
		CompanyName:       r.CompanyName,
		Address:           r.Address,
		BusinessType:      domain.BusinessType(r.BusinessType),
		AdditionalDetails: r.AdditionalDetails,
		Status:            domain.RequestStatus(r.Status),
		CreatedAt:         r.CreatedAt,
	}
	if r.AssignedTo.Valid {
		p := domain.PrincipalID(r.AssignedTo.UUID)
		m.AssignedTo = &p
	}
	return m
}

// Postgres stores requests in the incorporation_requests table. Every call
// runs in its own transaction scoped to the principal in ctx, and the table's
// row-level security policies decide what the caller may read or change.
type Postgres struct {
	runner *tx.Runner
}

func NewPostgres(db *sqlx.DB, rlsRole string) *Postgres {
	return &Postgres{runner: tx.NewRunner(db, rlsRole)}
}

// Insert adds a pending, unassigned request. The row is not read back: an
// anonymous submitter is not allowed to see it.
func (s *Postgres) Insert(ctx context.Context, req models.NewRequest) (domain.RequestID, error) {
	id := uuid.New()

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(requestsTable)
	ib.Cols("id", "owner_name", "phone_number", "company_name", "address",
		"business_type", "additional_details", "status")
	ib.Values(id, req.OwnerName, req.PhoneNumber, req.CompanyName, req.Address,
		string(req.BusinessType), req.AdditionalDetails, string(domain.RequestStatusPending))
	query, args := ib.Build()

	err := s.runner.Run(ctx, func(ctx context.Context, t *sqlx.Tx) error {
		if _, err := t.ExecContext(ctx, query, args...); err != nil {
			return tx.Classify(err)
		}
		return nil
	})
	if err != nil {
		return domain.RequestID{}, fmt.Errorf("insert request: %w", err)
	}
	return domain.RequestID(id), nil
}

func (s *Postgres) ListAssigned(ctx context.Context, principal domain.PrincipalID) ([]*models.IncorporationRequest, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(requestColumns...)
	sb.From(requestsTable)
	sb.Where(sb.Equal("assigned_to", uuid.UUID(principal)))
	sb.OrderBy("created_at").Desc()
	query, args := sb.Build()

	out, err := s.selectRequests(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("list assigned requests: %w", err)
	}
	return out, nil
}

func (s *Postgres) ListAll(ctx context.Context) ([]*models.IncorporationRequest, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(requestColumns...)
	sb.From(requestsTable)
	sb.OrderBy("created_at").Desc()
	query, args := sb.Build()

	out, err := s.selectRequests(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return out, nil
}

func (s *Postgres) selectRequests(ctx context.Context, query string, args []any) ([]*models.IncorporationRequest, error) {
	var rows []requestRow
	err := s.runner.Run(ctx, func(ctx context.Context, t *sqlx.Tx) error {
		if err := t.SelectContext(ctx, &rows, query, args...); err != nil {
			return tx.Classify(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]*models.IncorporationRequest, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *Postgres) UpdateStatus(ctx context.Context, id domain.RequestID, status domain.RequestStatus) error {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(requestsTable)
	ub.Set(ub.Assign("status", string(status)))
	ub.Where(ub.Equal("id", uuid.UUID(id)))
	query, args := ub.Build()

	if err := s.updateOne(ctx, query, args); err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	return nil
}

func (s *Postgres) Assign(ctx context.Context, id domain.RequestID, principal domain.PrincipalID) error {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(requestsTable)
	ub.Set(ub.Assign("assigned_to", uuid.UUID(principal)))
	ub.Where(ub.Equal("id", uuid.UUID(id)))
	query, args := ub.Build()

	if err := s.updateOne(ctx, query, args); err != nil {
		return fmt.Errorf("assign request: %w", err)
	}
	return nil
}

// updateOne runs an UPDATE that must touch exactly one row. A row hidden by
// policy is indistinguishable from a missing one.
func (s *Postgres) updateOne(ctx context.Context, query string, args []any) error {
	return s.runner.Run(ctx, func(ctx context.Context, t *sqlx.Tx) error {
		res, err := t.ExecContext(ctx, query, args...)
		if err != nil {
			return tx.Classify(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return tx.Classify(err)
		}
		if n == 0 {
			return sentinel.ErrNotFound
		}
		return nil
	})
}
