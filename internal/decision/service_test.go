package decision

//go:generate mockgen -destination=mocks/mocks.go -package=mocks consentry/internal/decision/ports SubjectDirectory,Catalog,Ledger,JurisdictionResolver,AuditPublisher

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"consentry/internal/audit"
	"consentry/internal/decision/metrics"
	"consentry/internal/decision/mocks"
	"consentry/internal/ledger"
	"consentry/internal/policy"
	"consentry/internal/subject"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	subjects *mocks.MockSubjectDirectory
	catalog  *mocks.MockCatalog
	ledger   *mocks.MockLedger
	resolver *mocks.MockJurisdictionResolver
	audit    *mocks.MockAuditPublisher
	service  *Service
	ctx      context.Context
	now      time.Time
	subject  *subject.Subject
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.subjects = mocks.NewMockSubjectDirectory(s.ctrl)
	s.catalog = mocks.NewMockCatalog(s.ctrl)
	s.ledger = mocks.NewMockLedger(s.ctrl)
	s.resolver = mocks.NewMockJurisdictionResolver(s.ctrl)
	s.audit = mocks.NewMockAuditPublisher(s.ctrl)
	s.service = NewService(
		s.subjects, s.catalog, s.ledger, s.resolver, s.audit,
		metrics.NewWith(prometheus.NewRegistry()),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.subject = &subject.Subject{
		ID:     id.NewSubjectID(),
		Email:  "ada@example.com",
		Region: id.JurisdictionEU,
	}
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) expectNoEvidence() {
	s.catalog.EXPECT().ApplicableVersion(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "no policy")).AnyTimes()
	s.ledger.EXPECT().ActiveGrant(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "no grant")).AnyTimes()
	s.ledger.EXPECT().CurrentStatus(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(id.ConsentStatus(""), dErrors.New(dErrors.CodeNotFound, "no history")).AnyTimes()
}

func (s *ServiceSuite) TestValidation() {
	s.Run("invalid purpose", func() {
		_, err := s.service.Evaluate(s.ctx, EvaluateRequest{Purpose: "telemetry"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("invalid jurisdiction override", func() {
		_, err := s.service.Evaluate(s.ctx, EvaluateRequest{Purpose: id.PurposeMarketing, Jurisdiction: "atlantis"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown subject propagates not found", func() {
		s.subjects.EXPECT().Resolve(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "subject not found"))

		_, err := s.service.Evaluate(s.ctx, EvaluateRequest{Purpose: id.PurposeMarketing})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// TestGrantedFlow walks the happy path: a subject with an active grant asks
// about the granted purpose and gets an allow attributed to that grant.
func (s *ServiceSuite) TestGrantedFlow() {
	grant := &ledger.ConsentRecord{
		ID:         id.NewConsentRecordID(),
		SubjectID:  s.subject.ID,
		Purpose:    id.PurposeMarketing,
		LegalBasis: id.BasisConsent,
		Status:     id.StatusGranted,
		ValidFrom:  s.now.Add(-time.Hour),
	}
	version := &policy.Version{Number: 2, Matrix: policy.Matrix{
		Rules: []policy.Rule{{Purpose: id.PurposeMarketing, AllowedWithoutConsent: false}},
	}}

	s.subjects.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(s.subject, nil)
	s.catalog.EXPECT().ApplicableVersion(gomock.Any(), id.JurisdictionEU, id.Tenant(""), s.now).Return(version, nil)
	s.ledger.EXPECT().ActiveGrant(gomock.Any(), s.subject.ID, id.PurposeMarketing, "", s.now).Return(grant, nil)
	s.ledger.EXPECT().CurrentStatus(gomock.Any(), s.subject.ID, id.PurposeMarketing).Return(id.StatusGranted, nil)

	var audited audit.Event
	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e audit.Event) error {
			audited = e
			return nil
		})

	d, err := s.service.Evaluate(s.ctx, EvaluateRequest{
		Subject: subject.Ref{SubjectID: s.subject.ID},
		Purpose: id.PurposeMarketing,
	})
	s.Require().NoError(err)
	s.True(d.Allowed)
	s.Equal(SourceConsent, d.Source)
	s.Equal(grant.ID, d.ConsentRecordID)
	s.Equal(2, d.PolicyVersion)
	s.Equal(id.JurisdictionEU, d.Jurisdiction)

	s.Equal(audit.EventDecisionMade, audited.Type)
	s.Equal("allow", audited.Decision)
	s.Equal(s.subject.ID, audited.SubjectID)
	s.NotEmpty(audited.PolicySnapshot, "matrix snapshot travels with the entry")
}

// TestDenialIsDataNotError asserts a policy-required-consent deny surfaces
// as a decision with reasoning, not as an error.
func (s *ServiceSuite) TestDenialIsDataNotError() {
	version := &policy.Version{Number: 1, Matrix: policy.Matrix{
		Rules: []policy.Rule{{Purpose: id.PurposeMarketing, AllowedWithoutConsent: false}},
	}}

	s.subjects.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(s.subject, nil)
	s.catalog.EXPECT().ApplicableVersion(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(version, nil)
	s.ledger.EXPECT().ActiveGrant(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "no grant"))
	s.ledger.EXPECT().CurrentStatus(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(id.ConsentStatus(""), dErrors.New(dErrors.CodeNotFound, "no history"))
	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	d, err := s.service.Evaluate(s.ctx, EvaluateRequest{
		Subject: subject.Ref{SubjectID: s.subject.ID},
		Purpose: id.PurposeMarketing,
	})
	s.Require().NoError(err)
	s.False(d.Allowed)
	s.Equal(SourcePolicyRequiresConsent, d.Source)
	s.Contains(d.Reasoning, ReasonRequiresGrant)
}

func (s *ServiceSuite) TestAuditFailureFailsClosed() {
	s.subjects.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(s.subject, nil)
	s.expectNoEvidence()
	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).
		Return(dErrors.New(dErrors.CodeInternal, "audit entry could not be persisted"))

	_, err := s.service.Evaluate(s.ctx, EvaluateRequest{
		Subject: subject.Ref{SubjectID: s.subject.ID},
		Purpose: id.PurposeMarketing,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestJurisdictionPrecedence() {
	s.expectNoEvidence()
	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	s.Run("request override wins over subject region", func() {
		s.subjects.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(s.subject, nil)
		d, err := s.service.Evaluate(s.ctx, EvaluateRequest{
			Subject:      subject.Ref{SubjectID: s.subject.ID},
			Purpose:      id.PurposeMarketing,
			Jurisdiction: id.JurisdictionCalifornia,
		})
		s.Require().NoError(err)
		s.Equal(id.JurisdictionCalifornia, d.Jurisdiction)
	})

	s.Run("subject region wins over client IP", func() {
		s.subjects.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(s.subject, nil)
		ctx := requestcontext.WithClientMetadata(s.ctx, "203.0.113.7", "")
		d, err := s.service.Evaluate(ctx, EvaluateRequest{
			Subject: subject.Ref{SubjectID: s.subject.ID},
			Purpose: id.PurposeMarketing,
		})
		s.Require().NoError(err)
		s.Equal(id.JurisdictionEU, d.Jurisdiction)
	})

	s.Run("client IP resolves when the subject has no region", func() {
		regionless := &subject.Subject{ID: id.NewSubjectID()}
		s.subjects.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(regionless, nil)
		s.resolver.EXPECT().FromIP(gomock.Any(), "203.0.113.7").Return(id.JurisdictionBrazil, nil)

		ctx := requestcontext.WithClientMetadata(s.ctx, "203.0.113.7", "")
		d, err := s.service.Evaluate(ctx, EvaluateRequest{
			Subject: subject.Ref{SubjectID: regionless.ID},
			Purpose: id.PurposeMarketing,
		})
		s.Require().NoError(err)
		s.Equal(id.JurisdictionBrazil, d.Jurisdiction)
	})

	s.Run("rest of world is the last resort", func() {
		regionless := &subject.Subject{ID: id.NewSubjectID()}
		s.subjects.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(regionless, nil)

		d, err := s.service.Evaluate(s.ctx, EvaluateRequest{
			Subject: subject.Ref{SubjectID: regionless.ID},
			Purpose: id.PurposeMarketing,
		})
		s.Require().NoError(err)
		s.Equal(id.JurisdictionRestOfWorld, d.Jurisdiction)
	})
}

// TestIdempotence pins the consistency guarantee: identical requests at a
// fixed instant produce identical decisions.
func (s *ServiceSuite) TestIdempotence() {
	s.subjects.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(s.subject, nil).Times(2)
	s.expectNoEvidence()

	auditCalls := 0
	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, audit.Event) error {
			auditCalls++
			return nil
		}).Times(2)

	req := EvaluateRequest{
		Subject: subject.Ref{SubjectID: s.subject.ID},
		Purpose: id.PurposeMarketing,
		At:      s.now.Add(-time.Hour),
	}
	first, err := s.service.Evaluate(s.ctx, req)
	s.Require().NoError(err)
	second, err := s.service.Evaluate(s.ctx, req)
	s.Require().NoError(err)

	s.Equal(first, second)
	s.Equal(2, auditCalls, "every evaluation writes its own audit entry")
}
