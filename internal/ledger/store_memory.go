package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	id "consentry/pkg/domain"
	"consentry/pkg/platform/sentinel"
)

// InMemoryStore keeps ledger entries in process memory for tests and
// development. Records are stored in write order.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []*ConsentRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Insert(_ context.Context, rec *ConsentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records = append(s.records, &cp)
	return nil
}

func (s *InMemoryStore) CloseWindow(_ context.Context, recordID id.ConsentRecordID, until time.Time, withdraw bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == recordID {
			u := until
			r.ValidUntil = &u
			if withdraw {
				r.Status = id.StatusWithdrawn
			}
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *InMemoryStore) FindOverlappingGrants(_ context.Context, key Key, from time.Time, until *time.Time) ([]*ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ConsentRecord
	for _, r := range s.records {
		if r.Key() != key || r.Status != id.StatusGranted {
			continue
		}
		if r.OverlapsWindow(from, until) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryStore) FindActiveGrant(_ context.Context, subjectID id.SubjectID, purpose id.Purpose, vendor string, at time.Time) (*ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Newest wins when malformed data leaves several active rows.
	var found *ConsentRecord
	for _, r := range s.records {
		if r.SubjectID != subjectID || r.Purpose != purpose || r.Vendor != vendor {
			continue
		}
		if r.ActiveAt(at) {
			found = r
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (s *InMemoryStore) Newest(_ context.Context, subjectID id.SubjectID, purpose id.Purpose) (*ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.records[i]
		if r.SubjectID == subjectID && r.Purpose == purpose {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Query(_ context.Context, q Query) ([]*ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ConsentRecord
	for _, r := range s.records {
		if !q.SubjectID.IsNil() && r.SubjectID != q.SubjectID {
			continue
		}
		if q.Purpose != "" && r.Purpose != q.Purpose {
			continue
		}
		if q.Vendor != "" && r.Vendor != q.Vendor {
			continue
		}
		if q.Status != "" && r.Status != q.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	// Write order is insertion order; reverse for newest first.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) ExpireLapsed(_ context.Context, now time.Time) ([]*ConsentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ConsentRecord
	for _, r := range s.records {
		if r.Status == id.StatusGranted && r.ValidUntil != nil && !now.Before(*r.ValidUntil) {
			r.Status = id.StatusExpired
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time, jurisdiction id.Jurisdiction, basis id.LegalBasis) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*ConsentRecord
	var deleted int64
	for _, r := range s.records {
		old := r.CreatedAt.Before(cutoff)
		if jurisdiction != "" && r.Jurisdiction != jurisdiction {
			old = false
		}
		if basis != "" && r.LegalBasis != basis {
			old = false
		}
		if old {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return deleted, nil
}
