package principal

import (
	"context"
	"sort"
	"sync"

	"incorp/internal/auth/models"
	"incorp/pkg/domain"
	"incorp/pkg/platform/sentinel"
)

// InMemory stores principals in process memory. Emails are unique
// case-insensitively.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[domain.PrincipalID]*models.Principal
	byEmail map[string]domain.PrincipalID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[domain.PrincipalID]*models.Principal),
		byEmail: make(map[string]domain.PrincipalID),
	}
}

func (s *InMemory) Create(_ context.Context, p *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := models.NormalizeEmail(p.Email)
	if _, taken := s.byEmail[email]; taken {
		return sentinel.ErrConflict
	}
	if _, taken := s.byID[p.ID]; taken {
		return sentinel.ErrConflict
	}
	cp := *p
	s.byID[p.ID] = &cp
	s.byEmail[email] = p.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.PrincipalID) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

// ListByRole returns principals with role ordered by display name.
func (s *InMemory) ListByRole(_ context.Context, role domain.Role) ([]*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Principal, 0)
	for _, p := range s.byID {
		if p.Role == role {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}
