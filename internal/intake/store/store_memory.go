package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"incorp/internal/intake/models"
	"incorp/pkg/domain"
	"incorp/pkg/platform/sentinel"
	"incorp/pkg/requestcontext"
)

// InMemory is a request store for tests and single-process dev mode. It
// applies the same row policy as the Postgres tables: admins see every row,
// handlers only rows assigned to them, anonymous callers none.
type InMemory struct {
	mu    sync.RWMutex
	rows  map[domain.RequestID]*stored
	seq   uint64
	clock func() time.Time
}

type stored struct {
	req models.IncorporationRequest
	seq uint64
}

// Option configures an InMemory store.
type Option func(*InMemory)

// WithClock overrides the creation timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(s *InMemory) {
		s.clock = clock
	}
}

func NewInMemory(opts ...Option) *InMemory {
	s := &InMemory{
		rows:  make(map[domain.RequestID]*stored),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func canSee(p requestcontext.Principal, r *models.IncorporationRequest) bool {
	if p.Role == domain.RoleAdmin {
		return true
	}
	return !p.IsAnonymous() && r.IsAssignedTo(p.ID)
}

func (s *InMemory) Insert(_ context.Context, req models.NewRequest) (domain.RequestID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := domain.RequestID(uuid.New())
	s.seq++
	s.rows[id] = &stored{
		seq: s.seq,
		req: models.IncorporationRequest{
			ID:                id,
			OwnerName:         req.OwnerName,
			PhoneNumber:       req.PhoneNumber,
			CompanyName:       req.CompanyName,
			Address:           req.Address,
			BusinessType:      req.BusinessType,
			AdditionalDetails: req.AdditionalDetails,
			Status:            domain.RequestStatusPending,
			CreatedAt:         s.clock(),
		},
	}
	return id, nil
}

func (s *InMemory) ListAssigned(ctx context.Context, principal domain.PrincipalID) ([]*models.IncorporationRequest, error) {
	caller := requestcontext.PrincipalFrom(ctx)
	return s.list(func(r *models.IncorporationRequest) bool {
		return r.IsAssignedTo(principal) && canSee(caller, r)
	}), nil
}

func (s *InMemory) ListAll(ctx context.Context) ([]*models.IncorporationRequest, error) {
	caller := requestcontext.PrincipalFrom(ctx)
	return s.list(func(r *models.IncorporationRequest) bool {
		return canSee(caller, r)
	}), nil
}

// list returns copies of the matching rows, newest first.
func (s *InMemory) list(match func(*models.IncorporationRequest) bool) []*models.IncorporationRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*stored, 0, len(s.rows))
	for _, row := range s.rows {
		if match(&row.req) {
			matched = append(matched, row)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.req.CreatedAt.Equal(b.req.CreatedAt) {
			return a.req.CreatedAt.After(b.req.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]*models.IncorporationRequest, len(matched))
	for i, row := range matched {
		out[i] = copyRequest(&row.req)
	}
	return out
}

func (s *InMemory) UpdateStatus(ctx context.Context, id domain.RequestID, status domain.RequestStatus) error {
	caller := requestcontext.PrincipalFrom(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok || !canSee(caller, &row.req) {
		return sentinel.ErrNotFound
	}
	row.req.Status = status
	return nil
}

func (s *InMemory) Assign(ctx context.Context, id domain.RequestID, principal domain.PrincipalID) error {
	caller := requestcontext.PrincipalFrom(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok || !canSee(caller, &row.req) {
		return sentinel.ErrNotFound
	}
	// The updated row must still be visible to the caller.
	if caller.Role != domain.RoleAdmin && principal != caller.ID {
		return sentinel.ErrRejected
	}
	assignee := principal
	row.req.AssignedTo = &assignee
	return nil
}

func copyRequest(r *models.IncorporationRequest) *models.IncorporationRequest {
	c := *r
	if r.AssignedTo != nil {
		a := *r.AssignedTo
		c.AssignedTo = &a
	}
	return &c
}
