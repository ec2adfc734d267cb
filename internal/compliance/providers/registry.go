package providers

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	dErrors "klok/pkg/domain-errors"
)

// Registry maps jurisdiction codes to providers. Reads are lock-free
// against an immutable snapshot; Register copies the map and swaps the
// pointer, so a reader sees either the old or the new provider.
type Registry struct {
	mu        sync.Mutex // serializes writers
	providers atomic.Pointer[map[string]Provider]
}

// NewRegistry creates a registry pre-populated with ps, keyed by Code().
func NewRegistry(ps ...Provider) (*Registry, error) {
	r := &Registry{}
	empty := map[string]Provider{}
	r.providers.Store(&empty)
	for _, p := range ps {
		if _, err := r.Register(p.Code(), p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Register installs p under code, replacing any existing provider. It
// returns the provider that was replaced, if any.
func (r *Registry) Register(code string, p Provider) (Provider, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "jurisdiction code is required")
	}
	if p == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "provider is required")
	}
	if err := p.Classifications().Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("provider %s rejected", code))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.providers.Load()
	next := make(map[string]Provider, len(current)+1)
	maps.Copy(next, current)
	previous := next[code]
	next[code] = p
	r.providers.Store(&next)
	return previous, nil
}

// Get returns the provider for code or an unsupported_jurisdiction error.
func (r *Registry) Get(code string) (Provider, error) {
	p, ok := (*r.providers.Load())[normalizeCode(code)]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnsupportedJurisdiction, fmt.Sprintf("no compliance provider for jurisdiction %q", code))
	}
	return p, nil
}

// Codes returns the registered jurisdiction codes, sorted.
func (r *Registry) Codes() []string {
	return slices.Sorted(maps.Keys(*r.providers.Load()))
}

// All returns the providers ordered by code.
func (r *Registry) All() []Provider {
	snapshot := *r.providers.Load()
	out := make([]Provider, 0, len(snapshot))
	for _, code := range slices.Sorted(maps.Keys(snapshot)) {
		out = append(out, snapshot[code])
	}
	return out
}
