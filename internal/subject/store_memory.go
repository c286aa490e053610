package subject

import (
	"context"
	"strings"
	"sync"
	"time"

	id "consentry/pkg/domain"
	"consentry/pkg/platform/sentinel"
)

// InMemoryStore keeps subjects in process memory for tests and development.
type InMemoryStore struct {
	mu       sync.RWMutex
	subjects map[id.SubjectID]*Subject
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{subjects: make(map[id.SubjectID]*Subject)}
}

func (s *InMemoryStore) Create(_ context.Context, sub *Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subjects {
		if !existing.Active() {
			continue
		}
		if strings.EqualFold(existing.Email, sub.Email) {
			return sentinel.ErrConflict
		}
		if sub.ExternalID != "" && existing.ExternalID == sub.ExternalID && existing.Tenant == sub.Tenant {
			return sentinel.ErrConflict
		}
	}

	cp := *sub
	s.subjects[sub.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, subjectID id.SubjectID) (*Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subjects[subjectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *InMemoryStore) FindByExternalID(_ context.Context, externalID string, tenant id.Tenant) (*Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subjects {
		if sub.Active() && sub.ExternalID == externalID && sub.Tenant == tenant {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Pseudonymize(_ context.Context, subjectID id.SubjectID, emailHash, externalHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subjects[subjectID]
	if !ok {
		return sentinel.ErrNotFound
	}
	// Already-pseudonymized rows are treated as gone, matching the
	// deleted_at guard in the Postgres store.
	if sub.DeletedAt != nil {
		return sentinel.ErrNotFound
	}
	sub.Email = emailHash
	if sub.ExternalID != "" {
		sub.ExternalID = externalHash
	}
	sub.DeletedAt = &at
	sub.UpdatedAt = at
	return nil
}

func (s *InMemoryStore) ListInactiveBefore(_ context.Context, cutoff time.Time) ([]*Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Subject
	for _, sub := range s.subjects {
		if sub.Active() && sub.UpdatedAt.Before(cutoff) {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}
