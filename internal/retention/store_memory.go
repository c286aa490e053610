package retention

import (
	"context"
	"sort"
	"sync"

	id "consentry/pkg/domain"
	"consentry/pkg/platform/sentinel"
)

// InMemoryRuleStore keeps rules in process memory for tests and development.
type InMemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[id.RetentionRuleID]*Rule
}

func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{rules: make(map[id.RetentionRuleID]*Rule)}
}

func (s *InMemoryRuleStore) Create(_ context.Context, r *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rules[r.ID] = &cp
	return nil
}

func (s *InMemoryRuleStore) List(_ context.Context) ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Rule, 0, len(s.rules))
	for _, r := range s.rules {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *InMemoryRuleStore) ListActive(ctx context.Context) ([]*Rule, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemoryRuleStore) SetActive(_ context.Context, ruleID id.RetentionRuleID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[ruleID]
	if !ok {
		return sentinel.ErrNotFound
	}
	r.Active = active
	return nil
}

// InMemoryJobStore keeps run records in process memory.
type InMemoryJobStore struct {
	mu   sync.RWMutex
	jobs []*Job
}

func NewInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{}
}

func (s *InMemoryJobStore) Create(_ context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *j
	s.jobs = append(s.jobs, &cp)
	return nil
}

func (s *InMemoryJobStore) Update(_ context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.jobs {
		if existing.ID == j.ID {
			cp := *j
			s.jobs[i] = &cp
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *InMemoryJobStore) List(_ context.Context, limit int) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.jobs))
	for i := len(s.jobs) - 1; i >= 0; i-- {
		cp := *s.jobs[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
