package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"consentry/internal/audit"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/sentinel"
	"consentry/pkg/platform/tx"
	"consentry/pkg/requestcontext"
)

var recordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "consentry_ledger_records_written_total",
	Help: "Consent records appended to the ledger, by status",
}, []string{"status"})

// Service is the consent ledger: an append-only event store with overlap
// resolution. All mutations and their paired audit entries run inside one
// transaction; a failed audit write rolls back the mutation.
type Service struct {
	store  Store
	audit  *audit.Publisher
	tx     tx.Runner
	logger *slog.Logger
}

func NewService(store Store, auditor *audit.Publisher, runner tx.Runner, logger *slog.Logger) *Service {
	if runner == nil {
		runner = tx.NoopRunner{}
	}
	return &Service{store: store, audit: auditor, tx: runner, logger: logger}
}

// RecordInput carries everything needed to append one ledger entry.
type RecordInput struct {
	SubjectID       id.SubjectID
	Purpose         id.Purpose
	Vendor          string
	LegalBasis      id.LegalBasis
	Status          id.ConsentStatus
	Jurisdiction    id.Jurisdiction
	ValidFrom       time.Time
	ValidUntil      *time.Time
	PolicyVersionID id.PolicyVersionID
	PolicySnapshot  json.RawMessage
	Source          string
	Reason          string
}

func (in *RecordInput) validate() error {
	if in.SubjectID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "subject is required")
	}
	if !in.Purpose.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid purpose %q", in.Purpose)
	}
	if !in.Status.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid consent status %q", in.Status)
	}
	if !in.Jurisdiction.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid jurisdiction %q", in.Jurisdiction)
	}
	if in.LegalBasis != "" && !in.LegalBasis.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid legal basis %q", in.LegalBasis)
	}
	if in.ValidFrom.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "valid_from is required")
	}
	if in.ValidUntil != nil && !in.ValidFrom.Before(*in.ValidUntil) {
		return dErrors.New(dErrors.CodeInvalidInput, "valid_until must be after valid_from")
	}
	return nil
}

// Record appends a consent state change. Currently-granted records sharing
// the key with an overlapping window are resolved first, in the same
// transaction:
//   - existing.valid_from strictly before the new valid_from: the window is
//     closed at the new valid_from (the grant stays granted for its past
//     span);
//   - otherwise the record is marked withdrawn, superseded by an
//     earlier-starting replacement.
//
// Exactly one of the two applies per overlapping record. This is the only
// ledger mutation ever permitted.
func (s *Service) Record(ctx context.Context, in RecordInput) (*ConsentRecord, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	rec := &ConsentRecord{
		ID:              id.NewConsentRecordID(),
		SubjectID:       in.SubjectID,
		Purpose:         in.Purpose,
		Vendor:          in.Vendor,
		LegalBasis:      in.LegalBasis,
		Status:          in.Status,
		Jurisdiction:    in.Jurisdiction,
		ValidFrom:       in.ValidFrom,
		ValidUntil:      in.ValidUntil,
		PolicyVersionID: in.PolicyVersionID,
		PolicySnapshot:  in.PolicySnapshot,
		Source:          in.Source,
		CreatedAt:       requestcontext.Now(ctx),
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.resolveOverlaps(txCtx, rec); err != nil {
			return err
		}
		if err := s.store.Insert(txCtx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append consent record")
		}
		return s.audit.Emit(txCtx, s.auditEventFor(rec, in.Reason))
	})
	if err != nil {
		return nil, err
	}

	recordsWritten.WithLabelValues(string(rec.Status)).Inc()
	return rec, nil
}

func (s *Service) resolveOverlaps(ctx context.Context, rec *ConsentRecord) error {
	overlaps, err := s.store.FindOverlappingGrants(ctx, rec.Key(), rec.ValidFrom, rec.ValidUntil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "overlap lookup failed")
	}
	for _, existing := range overlaps {
		// Strict inequality: an existing grant starting at exactly the new
		// valid_from is withdrawn, not closed.
		withdraw := !existing.ValidFrom.Before(rec.ValidFrom)
		if err := s.store.CloseWindow(ctx, existing.ID, rec.ValidFrom, withdraw); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to supersede consent record")
		}
		if s.logger != nil {
			s.logger.DebugContext(ctx, "superseded overlapping grant",
				"record_id", existing.ID,
				"withdrawn", withdraw,
			)
		}
	}
	return nil
}

func (s *Service) auditEventFor(rec *ConsentRecord, reason string) audit.Event {
	eventType := audit.EventConsentRecorded
	if rec.Status == id.StatusRevoked {
		eventType = audit.EventConsentRevoked
	}
	return audit.Event{
		Type:           eventType,
		SubjectID:      rec.SubjectID,
		Purpose:        rec.Purpose.String(),
		Decision:       rec.Status.String(),
		Reason:         reason,
		PolicySnapshot: rec.PolicySnapshot,
		Details: map[string]any{
			"record_id":    rec.ID.String(),
			"vendor":       rec.Vendor,
			"jurisdiction": rec.Jurisdiction.String(),
			"source":       rec.Source,
		},
	}
}

// Query returns matching ledger entries, newest first.
func (s *Service) Query(ctx context.Context, q Query) ([]*ConsentRecord, error) {
	if q.SubjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject is required")
	}
	recs, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "ledger query failed")
	}
	return recs, nil
}

// CurrentStatus reads only the most recent record for (subject, purpose),
// applying the read-time expiry override: a stored granted status whose
// window has lapsed reads as expired without any background mutation.
//
// Errors: CodeNotFound when the subject has no history for the purpose.
func (s *Service) CurrentStatus(ctx context.Context, subjectID id.SubjectID, purpose id.Purpose) (id.ConsentStatus, error) {
	rec, err := s.store.Newest(ctx, subjectID, purpose)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.New(dErrors.CodeNotFound, "no consent history for purpose")
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "ledger read failed")
	}
	return rec.EffectiveStatus(requestcontext.Now(ctx)), nil
}

// ActiveGrant returns the currently-valid granted record for the key,
// checking the vendor-specific key first and falling back to the
// purpose-level key. Returns CodeNotFound when neither exists.
func (s *Service) ActiveGrant(ctx context.Context, subjectID id.SubjectID, purpose id.Purpose, vendor string, at time.Time) (*ConsentRecord, error) {
	if vendor != "" {
		rec, err := s.store.FindActiveGrant(ctx, subjectID, purpose, vendor, at)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "ledger read failed")
		}
	}
	rec, err := s.store.FindActiveGrant(ctx, subjectID, purpose, "", at)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no active grant")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "ledger read failed")
	}
	return rec, nil
}

// Revoke appends a withdrawal for the single active granted record matching
// the vendor (or the purpose-level record when vendor is empty or has no
// grant of its own). The active grant's window is closed at now by overlap
// resolution.
//
// Errors: CodeInvalidState ("no active consent") when nothing is revocable.
func (s *Service) Revoke(ctx context.Context, subjectID id.SubjectID, purpose id.Purpose, vendor, reason, source string) (*ConsentRecord, error) {
	if !purpose.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid purpose %q", purpose)
	}

	now := requestcontext.Now(ctx)
	active, err := s.ActiveGrant(ctx, subjectID, purpose, vendor, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidState, "no active consent")
		}
		return nil, err
	}

	return s.Record(ctx, RecordInput{
		SubjectID:       subjectID,
		Purpose:         purpose,
		Vendor:          active.Vendor,
		LegalBasis:      active.LegalBasis,
		Status:          id.StatusRevoked,
		Jurisdiction:    active.Jurisdiction,
		ValidFrom:       now,
		PolicyVersionID: active.PolicyVersionID,
		PolicySnapshot:  active.PolicySnapshot,
		Source:          source,
		Reason:          reason,
	})
}

// RecordBatch appends one record per purpose change in a single transaction
// and writes a single audit entry summarizing the whole batch. Used by the
// preference projection; individual records carry no per-record audit entry
// here.
func (s *Service) RecordBatch(ctx context.Context, subjectID id.SubjectID, jurisdiction id.Jurisdiction, changes map[id.Purpose]id.ConsentStatus, source string) ([]*ConsentRecord, error) {
	if len(changes) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "no preference changes supplied")
	}
	for p, status := range changes {
		if !p.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid purpose %q", p)
		}
		if !status.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid consent status %q", status)
		}
	}

	now := requestcontext.Now(ctx)
	var out []*ConsentRecord

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		summary := make(map[string]any, len(changes))
		for purpose, status := range changes {
			rec := &ConsentRecord{
				ID:           id.NewConsentRecordID(),
				SubjectID:    subjectID,
				Purpose:      purpose,
				Status:       status,
				Jurisdiction: jurisdiction,
				ValidFrom:    now,
				Source:       source,
				CreatedAt:    now,
			}
			// Preference entries carry no basis of their own. Adopt the
			// active grant's basis so overlap resolution closes it rather
			// than leaving it granted under a different key.
			active, err := s.store.FindActiveGrant(txCtx, subjectID, purpose, "", now)
			switch {
			case err == nil:
				rec.LegalBasis = active.LegalBasis
			case !errors.Is(err, sentinel.ErrNotFound):
				return dErrors.Wrap(err, dErrors.CodeInternal, "ledger read failed")
			}
			if err := s.resolveOverlaps(txCtx, rec); err != nil {
				return err
			}
			if err := s.store.Insert(txCtx, rec); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append consent record")
			}
			summary[purpose.String()] = status.String()
			out = append(out, rec)
		}
		return s.audit.Emit(txCtx, audit.Event{
			Type:      audit.EventPreferencesUpdated,
			SubjectID: subjectID,
			Details:   map[string]any{"changes": summary, "source": source},
		})
	})
	if err != nil {
		return nil, err
	}

	for _, rec := range out {
		recordsWritten.WithLabelValues(string(rec.Status)).Inc()
	}
	return out, nil
}
