package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"klok/internal/organization"
	id "klok/pkg/domain"
	"klok/pkg/platform/sentinel"
)

// InMemoryStore keeps deep copies so callers never share state with the store.
type InMemoryStore struct {
	mu   sync.RWMutex
	orgs map[id.OrganizationID]*organization.Organization
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{orgs: make(map[id.OrganizationID]*organization.Organization)}
}

func (s *InMemoryStore) Create(_ context.Context, o *organization.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[o.ID]; ok {
		return sentinel.ErrConflict
	}
	s.orgs[o.ID] = o.Clone()
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, o *organization.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orgs[o.ID]
	if !ok || current.TenantID != o.TenantID {
		return sentinel.ErrNotFound
	}
	s.orgs[o.ID] = o.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, tenantID id.TenantID, orgID id.OrganizationID) (*organization.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orgs[orgID]
	if !ok || o.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *InMemoryStore) ListReviewDue(_ context.Context, tenantID id.TenantID, before time.Time, limit int) ([]*organization.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []*organization.Organization
	for _, o := range s.orgs {
		if o.TenantID != tenantID || o.Risk == nil || o.Risk.ReviewRequiredAt.After(before) {
			continue
		}
		due = append(due, o.Clone())
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].Risk.ReviewRequiredAt.Before(due[j].Risk.ReviewRequiredAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}
