package request

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"consentry/internal/audit"
	"consentry/internal/subject"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/sentinel"
	"consentry/pkg/platform/tx"
	"consentry/pkg/requestcontext"
)

// Pseudonymizer scrubs a subject's direct identifiers. Satisfied by the
// subject store.
type Pseudonymizer interface {
	Pseudonymize(ctx context.Context, subjectID id.SubjectID, emailHash, externalHash string, at time.Time) error
}

// Service files and completes subject requests. Completing a deletion
// request pseudonymizes the subject in the same transaction.
type Service struct {
	store    Store
	subjects subject.Directory
	scrubber Pseudonymizer
	audit    *audit.Publisher
	tx       tx.Runner
	logger   *slog.Logger
}

func NewService(store Store, subjects subject.Directory, scrubber Pseudonymizer, auditor *audit.Publisher, txRunner tx.Runner, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		subjects: subjects,
		scrubber: scrubber,
		audit:    auditor,
		tx:       txRunner,
		logger:   logger,
	}
}

// File registers a new pending request for the subject.
//
// Errors: CodeInvalidInput on an unknown kind; CodeNotFound when the
// subject does not exist.
func (s *Service) File(ctx context.Context, subjectID id.SubjectID, kind Kind, reason string) (*SubjectRequest, error) {
	if !kind.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown request kind %q", kind)
	}
	sub, err := s.subjects.Resolve(ctx, subject.Ref{SubjectID: subjectID})
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	req := &SubjectRequest{
		ID:        id.NewSubjectRequestID(),
		SubjectID: sub.ID,
		Kind:      kind,
		Status:    StatusPending,
		Reason:    reason,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, req); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to file request")
		}
		return s.audit.Emit(ctx, audit.Event{
			Type:      audit.EventRequestFiled,
			SubjectID: req.SubjectID,
			Details: map[string]any{
				"request_id": req.ID.String(),
				"kind":       string(req.Kind),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subject request filed",
		"request_id", req.ID,
		"subject_id", req.SubjectID,
		"kind", req.Kind,
	)
	return req, nil
}

// Complete transitions a pending request to completed. Deletion requests
// pseudonymize the subject as part of the transition; requests already
// completed are rejected.
//
// Errors: CodeNotFound for an unknown request; CodeInvalidState when the
// request is already completed.
func (s *Service) Complete(ctx context.Context, requestID id.SubjectRequestID) (*SubjectRequest, error) {
	req, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "request lookup failed")
	}
	if req.Status == StatusCompleted {
		return nil, dErrors.New(dErrors.CodeInvalidState, "request already completed")
	}

	now := requestcontext.Now(ctx)
	req.Status = StatusCompleted
	req.UpdatedAt = now

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Update(ctx, req); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to complete request")
		}
		if req.Kind == KindDeletion {
			emailHash := subject.Pseudonym(req.SubjectID, now)
			externalHash := subject.Pseudonym(req.SubjectID, now.Add(time.Nanosecond))
			if err := s.scrubber.Pseudonymize(ctx, req.SubjectID, emailHash, externalHash, now); err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					// Subject already scrubbed, e.g. by a retention run.
					// The request still completes.
					s.logger.WarnContext(ctx, "deletion request for already pseudonymized subject",
						"request_id", req.ID,
						"subject_id", req.SubjectID,
					)
				} else {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to pseudonymize subject")
				}
			} else if err := s.audit.Emit(ctx, audit.Event{
				Type:      audit.EventSubjectPseudonymized,
				SubjectID: req.SubjectID,
			}); err != nil {
				return err
			}
		}
		return s.audit.Emit(ctx, audit.Event{
			Type:      audit.EventRequestCompleted,
			SubjectID: req.SubjectID,
			Details: map[string]any{
				"request_id": req.ID.String(),
				"kind":       string(req.Kind),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Get returns a single request.
func (s *Service) Get(ctx context.Context, requestID id.SubjectRequestID) (*SubjectRequest, error) {
	req, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "request lookup failed")
	}
	return req, nil
}

// List returns a subject's requests, newest first.
func (s *Service) List(ctx context.Context, subjectID id.SubjectID) ([]*SubjectRequest, error) {
	out, err := s.store.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	return out, nil
}
