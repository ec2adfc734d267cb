package memory

import (
	"context"
	"sync"

	id "klok/pkg/domain"
	audit "klok/pkg/platform/audit"
)

// InMemoryStore keeps audit events per tenant. Used by tests and the
// single-process dev server.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.TenantID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.TenantID][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.TenantID][]audit.Event)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.TenantID] = append(s.events[event.TenantID], event)
	return nil
}

func (s *InMemoryStore) ListByTenant(tenantID id.TenantID) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[tenantID]...)
}

// CountAction returns how many events with the given action were recorded
// across all tenants.
func (s *InMemoryStore) CountAction(action audit.AuditEvent) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, evs := range s.events {
		for _, e := range evs {
			if e.Action == string(action) {
				n++
			}
		}
	}
	return n
}
