package policy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"consentry/internal/audit"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/sentinel"
	"consentry/pkg/requestcontext"
)

// Service is the versioned policy catalog. Versions are immutable once
// published; changing rules means publishing a new version with a fresh
// effectiveness window.
type Service struct {
	store  Store
	cache  *Cache
	audit  *audit.Publisher
	logger *slog.Logger
}

func NewService(store Store, cache *Cache, auditor *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{store: store, cache: cache, audit: auditor, logger: logger}
}

// CreatePolicy registers an empty catalog entry for a jurisdiction. The
// tenant is empty for the shared catalog.
func (s *Service) CreatePolicy(ctx context.Context, jurisdiction id.Jurisdiction, tenant id.Tenant, name string) (*Policy, error) {
	if !jurisdiction.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid jurisdiction %q", jurisdiction)
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "policy name is required")
	}

	p := &Policy{
		ID:           id.NewPolicyID(),
		Jurisdiction: jurisdiction,
		Tenant:       tenant,
		Name:         name,
	}
	err := s.store.CreatePolicy(ctx, p)
	if errors.Is(err, sentinel.ErrConflict) {
		return nil, dErrors.New(dErrors.CodeConflict, "a policy already covers this jurisdiction")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create policy")
	}
	return p, nil
}

// VersionInput describes a version to publish.
type VersionInput struct {
	PolicyID      id.PolicyID
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	Matrix        Matrix
}

// PublishVersion appends an immutable version to a policy. The new window
// must not overlap any sibling's; the version number is assigned here.
func (s *Service) PublishVersion(ctx context.Context, in VersionInput) (*Version, error) {
	if in.PolicyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "policy is required")
	}
	if in.EffectiveFrom.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "effective_from is required")
	}
	if in.EffectiveTo != nil && !in.EffectiveFrom.Before(*in.EffectiveTo) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "effective_to must be after effective_from")
	}
	if err := validateRules(in.Matrix.Rules); err != nil {
		return nil, err
	}

	siblings, err := s.store.ListVersions(ctx, in.PolicyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policy versions")
	}
	number := 1
	for _, sib := range siblings {
		if sib.OverlapsWindow(in.EffectiveFrom, in.EffectiveTo) {
			return nil, dErrors.Newf(dErrors.CodeConflict,
				"effectiveness window overlaps version %d", sib.Number)
		}
		if sib.Number >= number {
			number = sib.Number + 1
		}
	}

	v := &Version{
		ID:            id.NewPolicyVersionID(),
		PolicyID:      in.PolicyID,
		Number:        number,
		EffectiveFrom: in.EffectiveFrom,
		EffectiveTo:   in.EffectiveTo,
		Matrix:        in.Matrix,
		CreatedAt:     requestcontext.Now(ctx),
		CreatedBy:     requestcontext.ActorID(ctx),
	}
	if err := s.store.AddVersion(ctx, v); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "version number already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to publish policy version")
	}

	if s.audit != nil {
		snapshot, _ := json.Marshal(v.Matrix)
		if err := s.audit.Emit(ctx, audit.Event{
			Type:           audit.EventPolicyPublished,
			PolicySnapshot: snapshot,
			Details: map[string]any{
				"policy_id": v.PolicyID.String(),
				"version":   v.Number,
			},
		}); err != nil {
			return nil, err
		}
	}
	s.invalidateFor(ctx, v.PolicyID)
	return v, nil
}

func (s *Service) invalidateFor(ctx context.Context, policyID id.PolicyID) {
	if s.cache == nil {
		return
	}
	policies, err := s.store.ListPolicies(ctx)
	if err != nil {
		return
	}
	for _, p := range policies {
		if p.ID == policyID {
			s.cache.invalidate(ctx, p.Jurisdiction, p.Tenant)
			return
		}
	}
}

// ApplicableVersion resolves the version in force for (jurisdiction, tenant)
// at the given instant. Tenant-scoped catalogs shadow the shared one; when
// neither holds a version covering the instant the lookup fails with
// CodeNotFound and callers fall back to jurisdiction defaults.
func (s *Service) ApplicableVersion(ctx context.Context, jurisdiction id.Jurisdiction, tenant id.Tenant, at time.Time) (*Version, error) {
	if !jurisdiction.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid jurisdiction %q", jurisdiction)
	}

	if v, ok := s.cache.get(ctx, jurisdiction, tenant, at); ok {
		return v, nil
	}

	v, err := s.applicableFromStore(ctx, jurisdiction, tenant, at)
	if err != nil && tenant != "" && dErrors.HasCode(err, dErrors.CodeNotFound) {
		v, err = s.applicableFromStore(ctx, jurisdiction, "", at)
	}
	if err != nil {
		return nil, err
	}

	s.cache.put(ctx, jurisdiction, tenant, at, v)
	return v, nil
}

func (s *Service) applicableFromStore(ctx context.Context, jurisdiction id.Jurisdiction, tenant id.Tenant, at time.Time) (*Version, error) {
	p, err := s.store.FindPolicy(ctx, jurisdiction, tenant)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no policy for jurisdiction")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "policy lookup failed")
	}

	versions, err := s.store.ListVersions(ctx, p.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policy versions")
	}

	// Windows are disjoint by construction; the latest-starting match guards
	// against dirty data all the same.
	var applicable *Version
	for _, v := range versions {
		if !v.AppliesAt(at) {
			continue
		}
		if applicable == nil || v.EffectiveFrom.After(applicable.EffectiveFrom) {
			applicable = v
		}
	}
	if applicable == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "no policy version in force")
	}
	return applicable, nil
}

// Policies lists the catalog.
func (s *Service) Policies(ctx context.Context) ([]*Policy, error) {
	out, err := s.store.ListPolicies(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policies")
	}
	return out, nil
}

// Versions lists a policy's published versions in numeric order.
func (s *Service) Versions(ctx context.Context, policyID id.PolicyID) ([]*Version, error) {
	out, err := s.store.ListVersions(ctx, policyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policy versions")
	}
	return out, nil
}

// Seed materializes a validated document into the store. Policies and
// versions that already exist are left untouched, so seeding is idempotent
// across restarts.
func (s *Service) Seed(ctx context.Context, doc *Document) error {
	now := requestcontext.Now(ctx)
	for _, dp := range doc.Policies {
		jurisdiction, err := id.ParseJurisdiction(dp.Jurisdiction)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid seed document")
		}

		p, err := s.store.FindPolicy(ctx, jurisdiction, id.Tenant(dp.Tenant))
		if errors.Is(err, sentinel.ErrNotFound) {
			p = &Policy{
				ID:           id.NewPolicyID(),
				Jurisdiction: jurisdiction,
				Tenant:       id.Tenant(dp.Tenant),
				Name:         dp.Name,
			}
			if err := s.store.CreatePolicy(ctx, p); err != nil && !errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed policy")
			}
		} else if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "policy lookup failed")
		}

		existing, err := s.store.ListVersions(ctx, p.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policy versions")
		}
		published := make(map[int]bool, len(existing))
		for _, v := range existing {
			published[v.Number] = true
		}

		for _, dv := range dp.Versions {
			if published[dv.Version] {
				continue
			}
			v := &Version{
				ID:            id.NewPolicyVersionID(),
				PolicyID:      p.ID,
				Number:        dv.Version,
				EffectiveFrom: dv.EffectiveFrom,
				EffectiveTo:   dv.EffectiveTo,
				Matrix:        Matrix{Rules: dv.Rules, DefaultAllow: dv.DefaultAllow},
				CreatedAt:     now,
				CreatedBy:     "seed",
			}
			if err := s.store.AddVersion(ctx, v); err != nil && !errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed policy version")
			}
			if s.logger != nil {
				s.logger.InfoContext(ctx, "seeded policy version",
					"jurisdiction", jurisdiction,
					"policy", dp.Name,
					"version", dv.Version,
				)
			}
		}
	}
	return nil
}
