package policy

import (
	"context"
	"sort"
	"sync"

	id "consentry/pkg/domain"
	"consentry/pkg/platform/sentinel"
)

// InMemoryStore keeps the catalog in process memory for tests and
// development.
type InMemoryStore struct {
	mu       sync.RWMutex
	policies map[id.PolicyID]*Policy
	versions map[id.PolicyID][]*Version
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		policies: make(map[id.PolicyID]*Policy),
		versions: make(map[id.PolicyID][]*Version),
	}
}

func (s *InMemoryStore) CreatePolicy(_ context.Context, p *Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.policies {
		if existing.Jurisdiction == p.Jurisdiction && existing.Tenant == p.Tenant {
			return sentinel.ErrConflict
		}
	}
	cp := *p
	s.policies[p.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindPolicy(_ context.Context, jurisdiction id.Jurisdiction, tenant id.Tenant) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.policies {
		if p.Jurisdiction == jurisdiction && p.Tenant == tenant {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListPolicies(_ context.Context) ([]*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Policy, 0, len(s.policies))
	for _, p := range s.policies {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemoryStore) AddVersion(_ context.Context, v *Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[v.PolicyID]; !ok {
		return sentinel.ErrNotFound
	}
	for _, existing := range s.versions[v.PolicyID] {
		if existing.Number == v.Number {
			return sentinel.ErrConflict
		}
	}
	cp := *v
	s.versions[v.PolicyID] = append(s.versions[v.PolicyID], &cp)
	return nil
}

func (s *InMemoryStore) ListVersions(_ context.Context, policyID id.PolicyID) ([]*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.versions[policyID]
	out := make([]*Version, 0, len(versions))
	for _, v := range versions {
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}
