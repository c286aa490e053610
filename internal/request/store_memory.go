package request

import (
	"context"
	"sort"
	"sync"
	"time"

	id "consentry/pkg/domain"
	"consentry/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.SubjectRequestID]*SubjectRequest
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.SubjectRequestID]*SubjectRequest)}
}

func (s *InMemoryStore) Create(_ context.Context, req *SubjectRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, requestID id.SubjectRequestID) (*SubjectRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *InMemoryStore) Update(_ context.Context, req *SubjectRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[req.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID id.SubjectID) ([]*SubjectRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*SubjectRequest
	for _, req := range s.requests {
		if req.SubjectID == subjectID {
			cp := *req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) DeleteCompletedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for reqID, req := range s.requests {
		if req.Status == StatusCompleted && req.UpdatedAt.Before(cutoff) {
			delete(s.requests, reqID)
			count++
		}
	}
	return count, nil
}
