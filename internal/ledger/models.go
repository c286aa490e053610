package ledger

import (
	"encoding/json"
	"time"

	id "consentry/pkg/domain"
)

// ConsentRecord is one entry in the append-only consent ledger. Records are
// immutable once written, with a single permitted edit: closing the validity
// window (optionally marking the record withdrawn) when a newer record for
// the same key supersedes it. Every other state change appends.
type ConsentRecord struct {
	ID              id.ConsentRecordID
	SubjectID       id.SubjectID
	Purpose         id.Purpose
	Vendor          string // empty = purpose-level, not vendor-scoped
	LegalBasis      id.LegalBasis
	Status          id.ConsentStatus
	Jurisdiction    id.Jurisdiction
	ValidFrom       time.Time
	ValidUntil      *time.Time
	PolicyVersionID id.PolicyVersionID
	PolicySnapshot  json.RawMessage
	Source          string
	CreatedAt       time.Time
}

// Key identifies the consent scope: at most one granted record with an open
// or future window may exist per key at any instant.
type Key struct {
	SubjectID  id.SubjectID
	Purpose    id.Purpose
	Vendor     string
	LegalBasis id.LegalBasis
}

func (r *ConsentRecord) Key() Key {
	return Key{
		SubjectID:  r.SubjectID,
		Purpose:    r.Purpose,
		Vendor:     r.Vendor,
		LegalBasis: r.LegalBasis,
	}
}

// ActiveAt reports whether the record is a granted record whose validity
// window contains t.
func (r *ConsentRecord) ActiveAt(t time.Time) bool {
	if r.Status != id.StatusGranted {
		return false
	}
	if t.Before(r.ValidFrom) {
		return false
	}
	return r.ValidUntil == nil || t.Before(*r.ValidUntil)
}

// EffectiveStatus applies the read-time expiry override: a record whose
// stored status still says granted but whose window has closed reads as
// expired. The stored row is not mutated here.
func (r *ConsentRecord) EffectiveStatus(now time.Time) id.ConsentStatus {
	if r.Status == id.StatusGranted && r.ValidUntil != nil && !now.Before(*r.ValidUntil) {
		return id.StatusExpired
	}
	return r.Status
}

// OverlapsWindow reports whether the record's validity window intersects
// [from, until). A nil until means an open-ended window.
func (r *ConsentRecord) OverlapsWindow(from time.Time, until *time.Time) bool {
	if r.ValidUntil != nil && !from.Before(*r.ValidUntil) {
		return false
	}
	if until != nil && !r.ValidFrom.Before(*until) {
		return false
	}
	return true
}

// Query filters ledger reads. Zero values mean "no filter". Results are
// ordered newest first by write time. Tenant scoping happens at the subject
// resolution step; records hang off exactly one subject.
type Query struct {
	SubjectID id.SubjectID
	Purpose   id.Purpose
	Vendor    string
	Status    id.ConsentStatus
}
