package memory

import (
	"context"
	"sort"
	"sync"

	"klok/internal/invoice"
	id "klok/pkg/domain"
	"klok/pkg/platform/sentinel"
)

// InMemoryStore keeps invoice snapshots keyed by ID. Annotations live in a
// separate append-only list so an Update never drops one.
type InMemoryStore struct {
	mu          sync.RWMutex
	records     map[id.InvoiceID]invoice.Snapshot
	annotations map[id.InvoiceID][]invoice.Annotation
	dedupe      map[string]struct{}
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		records:     make(map[id.InvoiceID]invoice.Snapshot),
		annotations: make(map[id.InvoiceID][]invoice.Annotation),
		dedupe:      make(map[string]struct{}),
	}
}

func (s *InMemoryStore) Create(_ context.Context, r *invoice.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID()]; ok {
		return sentinel.ErrConflict
	}
	snap := r.Snapshot()
	snap.Annotations = nil
	s.records[r.ID()] = snap
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, r *invoice.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[r.ID()]
	if !ok || current.TenantID != r.TenantID() {
		return sentinel.ErrNotFound
	}
	if current.Status != invoice.StatusDraft {
		return sentinel.ErrInvalidState
	}
	snap := r.Snapshot()
	snap.Annotations = nil
	s.records[r.ID()] = snap
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, tenantID id.TenantID, invoiceID id.InvoiceID) (*invoice.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.records[invoiceID]
	if !ok || snap.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return s.rehydrateLocked(snap)
}

func (s *InMemoryStore) ListPage(_ context.Context, after id.InvoiceID, limit int) ([]invoice.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]id.InvoiceID, 0, len(s.records))
	cursor := ""
	if !after.IsNil() {
		cursor = after.String()
	}
	for invoiceID := range s.records {
		if invoiceID.String() > cursor {
			ids = append(ids, invoiceID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]invoice.Row, 0, len(ids))
	for _, invoiceID := range ids {
		rec, err := s.rehydrateLocked(s.records[invoiceID])
		out = append(out, invoice.Row{ID: invoiceID, Record: rec, Err: err})
	}
	return out, nil
}

// Restore loads a snapshot as stored, without the structural checks
// Rehydrate applies, the way rows arrive from a backup or an older schema.
func (s *InMemoryStore) Restore(_ context.Context, snap invoice.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[snap.ID]; ok {
		return sentinel.ErrConflict
	}
	snap.Annotations = nil
	s.records[snap.ID] = snap
	return nil
}

func (s *InMemoryStore) AppendAnnotation(_ context.Context, a invoice.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[a.InvoiceID]; !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := s.dedupe[a.DedupeKey]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.dedupe[a.DedupeKey] = struct{}{}
	s.annotations[a.InvoiceID] = append(s.annotations[a.InvoiceID], a)
	return nil
}

// AnnotationCount reports how many annotations exist across all records.
func (s *InMemoryStore) AnnotationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dedupe)
}

func (s *InMemoryStore) rehydrateLocked(snap invoice.Snapshot) (*invoice.Record, error) {
	snap.Annotations = append([]invoice.Annotation(nil), s.annotations[snap.ID]...)
	return invoice.Rehydrate(snap)
}
