package policy

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consentry/internal/audit"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store   *InMemoryStore
	audits  *audit.InMemoryStore
	service *Service
	ctx     context.Context
	now     time.Time
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.audits = audit.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewService(s.store, nil, audit.NewPublisher(s.audits, audit.WithLogger(logger)), logger)
	s.now = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) newPolicy(jurisdiction id.Jurisdiction) *Policy {
	p, err := s.service.CreatePolicy(s.ctx, jurisdiction, "", "baseline")
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) publish(policyID id.PolicyID, from time.Time, to *time.Time, matrix Matrix) *Version {
	v, err := s.service.PublishVersion(s.ctx, VersionInput{
		PolicyID:      policyID,
		EffectiveFrom: from,
		EffectiveTo:   to,
		Matrix:        matrix,
	})
	s.Require().NoError(err)
	return v
}

func (s *ServiceSuite) TestCreatePolicy() {
	s.Run("one policy per jurisdiction and tenant", func() {
		s.newPolicy(id.JurisdictionEU)
		_, err := s.service.CreatePolicy(s.ctx, id.JurisdictionEU, "", "another")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("tenant catalogs coexist with the shared one", func() {
		s.newPolicy(id.JurisdictionUK)
		_, err := s.service.CreatePolicy(s.ctx, id.JurisdictionUK, "acme", "acme overrides")
		s.Require().NoError(err)
	})
}

func (s *ServiceSuite) TestPublishVersion() {
	p := s.newPolicy(id.JurisdictionEU)

	s.Run("numbers are assigned sequentially", func() {
		to := s.now.AddDate(0, 1, 0)
		v1 := s.publish(p.ID, s.now, &to, Matrix{})
		v2 := s.publish(p.ID, to, nil, Matrix{})
		s.Equal(1, v1.Number)
		s.Equal(2, v2.Number)
	})

	s.Run("overlapping window is rejected", func() {
		_, err := s.service.PublishVersion(s.ctx, VersionInput{
			PolicyID:      p.ID,
			EffectiveFrom: s.now.AddDate(0, 0, 10),
			Matrix:        Matrix{},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("invalid matrix is rejected", func() {
		_, err := s.service.PublishVersion(s.ctx, VersionInput{
			PolicyID:      id.NewPolicyID(),
			EffectiveFrom: s.now,
			Matrix:        Matrix{Rules: []Rule{{Purpose: "marketing", Group: "tracking"}}},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown policy returns not found", func() {
		_, err := s.service.PublishVersion(s.ctx, VersionInput{
			PolicyID:      id.NewPolicyID(),
			EffectiveFrom: s.now,
			Matrix:        Matrix{},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("publication is audited", func() {
		events, err := s.audits.List(s.ctx, audit.Query{Type: audit.EventPolicyPublished})
		s.Require().NoError(err)
		s.Len(events, 2)
	})
}

func (s *ServiceSuite) TestApplicableVersion() {
	p := s.newPolicy(id.JurisdictionEU)
	cut := s.now.AddDate(0, 1, 0)
	v1 := s.publish(p.ID, s.now, &cut, Matrix{DefaultAllow: false})
	v2 := s.publish(p.ID, cut, nil, Matrix{DefaultAllow: true})

	s.Run("instant inside the first window", func() {
		got, err := s.service.ApplicableVersion(s.ctx, id.JurisdictionEU, "", s.now.AddDate(0, 0, 5))
		s.Require().NoError(err)
		s.Equal(v1.ID, got.ID)
	})

	s.Run("window boundary belongs to the successor", func() {
		got, err := s.service.ApplicableVersion(s.ctx, id.JurisdictionEU, "", cut)
		s.Require().NoError(err)
		s.Equal(v2.ID, got.ID)
	})

	s.Run("instant before all windows", func() {
		_, err := s.service.ApplicableVersion(s.ctx, id.JurisdictionEU, "", s.now.AddDate(0, 0, -1))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("jurisdiction without a policy", func() {
		_, err := s.service.ApplicableVersion(s.ctx, id.JurisdictionBrazil, "", s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("tenant lookup falls back to the shared catalog", func() {
		got, err := s.service.ApplicableVersion(s.ctx, id.JurisdictionEU, "acme", s.now)
		s.Require().NoError(err)
		s.Equal(v1.ID, got.ID)
	})

	s.Run("tenant catalog shadows the shared one", func() {
		tp, err := s.service.CreatePolicy(s.ctx, id.JurisdictionEU, "acme", "acme overrides")
		s.Require().NoError(err)
		tv := s.publish(tp.ID, s.now, nil, Matrix{DefaultAllow: true})

		got, err := s.service.ApplicableVersion(s.ctx, id.JurisdictionEU, "acme", s.now)
		s.Require().NoError(err)
		s.Equal(tv.ID, got.ID)
	})
}

func (s *ServiceSuite) TestSeed() {
	raw := `{
		"policies": [{
			"jurisdiction": "eu",
			"name": "GDPR baseline",
			"versions": [{
				"version": 1,
				"effective_from": "2025-01-01T00:00:00Z",
				"default_allow": false,
				"rules": [{"purpose": "essential", "allowed_without_consent": true, "required_basis": "contract"}]
			}]
		}]
	}`
	doc, err := ParseDocument([]byte(raw))
	s.Require().NoError(err)

	s.Require().NoError(s.service.Seed(s.ctx, doc))

	v, err := s.service.ApplicableVersion(s.ctx, id.JurisdictionEU, "", s.now)
	s.Require().NoError(err)
	s.Equal(1, v.Number)
	s.Require().Len(v.Matrix.Rules, 1)
	s.True(v.Matrix.Rules[0].AllowedWithoutConsent)

	s.Run("reseeding is idempotent", func() {
		s.Require().NoError(s.service.Seed(s.ctx, doc))
		versions, err := s.service.Versions(s.ctx, v.PolicyID)
		s.Require().NoError(err)
		s.Len(versions, 1)
	})
}
