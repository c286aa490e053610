package subject

import (
	"context"
	"errors"
	"strings"

	"consentry/internal/audit"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/sentinel"
	"consentry/pkg/requestcontext"
)

// Directory resolves subjects by internal or external identity. The decision
// engine consumes this interface; the service below is the in-process
// implementation.
type Directory interface {
	Resolve(ctx context.Context, ref Ref) (*Subject, error)
}

// Ref addresses a subject either by internal ID or by (external ID, tenant).
type Ref struct {
	SubjectID  id.SubjectID
	ExternalID string
	Tenant     id.Tenant
}

// Service provides subject lookup and creation with identity uniqueness
// enforcement.
type Service struct {
	store Store
	audit *audit.Publisher
}

func NewService(store Store, auditor *audit.Publisher) *Service {
	return &Service{store: store, audit: auditor}
}

// Resolve finds a subject by whichever identity the ref carries.
//
// Errors: CodeNotFound when no matching active subject exists;
// CodeInvalidInput when the ref is empty.
func (s *Service) Resolve(ctx context.Context, ref Ref) (*Subject, error) {
	switch {
	case !ref.SubjectID.IsNil():
		sub, err := s.store.FindByID(ctx, ref.SubjectID)
		if err != nil {
			return nil, wrapLookupErr(err)
		}
		return sub, nil
	case ref.ExternalID != "":
		sub, err := s.store.FindByExternalID(ctx, ref.ExternalID, ref.Tenant)
		if err != nil {
			return nil, wrapLookupErr(err)
		}
		return sub, nil
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject reference is empty")
	}
}

// Create registers a new subject.
//
// Errors: CodeConflict when the email or (external_id, tenant) identity is
// already taken by an active subject; CodeInvalidInput on malformed input.
func (s *Service) Create(ctx context.Context, email, externalID string, tenant id.Tenant, region id.Jurisdiction) (*Subject, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "a valid email is required")
	}
	if region != "" && !region.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid jurisdiction %q", region)
	}

	now := requestcontext.Now(ctx)
	sub := &Subject{
		ID:         id.NewSubjectID(),
		Email:      email,
		ExternalID: strings.TrimSpace(externalID),
		Tenant:     tenant,
		Region:     region,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.Create(ctx, sub); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "subject identity already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create subject")
	}

	if err := s.audit.Emit(ctx, audit.Event{
		Type:      audit.EventSubjectCreated,
		SubjectID: sub.ID,
		Details:   map[string]any{"tenant": string(tenant), "region": string(region)},
	}); err != nil {
		return nil, err
	}
	return sub, nil
}

func wrapLookupErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "subject not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "subject lookup failed")
}
