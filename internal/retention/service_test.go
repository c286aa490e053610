package retention

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consentry/internal/audit"
	"consentry/internal/ledger"
	"consentry/internal/request"
	"consentry/internal/subject"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	rules    *InMemoryRuleStore
	jobs     *InMemoryJobStore
	ledger   *ledger.InMemoryStore
	subjects *subject.InMemoryStore
	requests *request.InMemoryStore
	audits   *audit.InMemoryStore
	service  *Service
	ctx      context.Context
	now      time.Time
}

func (s *ServiceSuite) SetupTest() {
	s.rules = NewInMemoryRuleStore()
	s.jobs = NewInMemoryJobStore()
	s.ledger = ledger.NewInMemoryStore()
	s.subjects = subject.NewInMemoryStore()
	s.requests = request.NewInMemoryStore()
	s.audits = audit.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := audit.NewPublisher(s.audits, audit.WithLogger(logger))
	s.service = NewService(s.rules, s.jobs, s.ledger, s.subjects, s.requests, publisher, nil, logger)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) seedRecord(createdAt time.Time, jurisdiction id.Jurisdiction) *ledger.ConsentRecord {
	rec := &ledger.ConsentRecord{
		ID:           id.NewConsentRecordID(),
		SubjectID:    id.NewSubjectID(),
		Purpose:      id.PurposeAnalytics,
		LegalBasis:   id.BasisConsent,
		Status:       id.StatusGranted,
		Jurisdiction: jurisdiction,
		ValidFrom:    createdAt,
		CreatedAt:    createdAt,
	}
	s.Require().NoError(s.ledger.Insert(s.ctx, rec))
	return rec
}

func (s *ServiceSuite) TestAddRule() {
	s.Run("rejects invalid input", func() {
		_, err := s.service.AddRule(s.ctx, Rule{EntityType: "invoices", PeriodDays: 30})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = s.service.AddRule(s.ctx, Rule{EntityType: EntityConsentRecord, PeriodDays: 0})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = s.service.AddRule(s.ctx, Rule{EntityType: EntityConsentRecord, PeriodDays: 30, Jurisdiction: "atlantis"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("assigns an id and persists", func() {
		created, err := s.service.AddRule(s.ctx, Rule{EntityType: EntityConsentRecord, PeriodDays: 365, Active: true})
		s.Require().NoError(err)
		s.NotEmpty(created.ID.String())

		listed, err := s.service.Rules(s.ctx)
		s.Require().NoError(err)
		s.Len(listed, 1)
	})
}

func (s *ServiceSuite) TestRunExpiresLapsedGrants() {
	until := s.now.Add(-time.Hour)
	lapsed := &ledger.ConsentRecord{
		ID:         id.NewConsentRecordID(),
		SubjectID:  id.NewSubjectID(),
		Purpose:    id.PurposeMarketing,
		LegalBasis: id.BasisConsent,
		Status:     id.StatusGranted,
		ValidFrom:  s.now.Add(-48 * time.Hour),
		ValidUntil: &until,
		CreatedAt:  s.now.Add(-48 * time.Hour),
	}
	s.Require().NoError(s.ledger.Insert(s.ctx, lapsed))

	job, err := s.service.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(JobCompleted, job.Status)

	stored, err := s.ledger.Query(s.ctx, ledger.Query{SubjectID: lapsed.SubjectID})
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal(id.StatusExpired, stored[0].Status)

	events, err := s.audits.List(s.ctx, audit.Query{Type: audit.EventConsentExpired})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.EqualValues(1, events[0].Details["count"])
}

func (s *ServiceSuite) TestRunAppliesConsentRecordRules() {
	old := s.seedRecord(s.now.AddDate(0, 0, -400), id.JurisdictionEU)
	recent := s.seedRecord(s.now.AddDate(0, 0, -10), id.JurisdictionEU)
	otherJurisdiction := s.seedRecord(s.now.AddDate(0, 0, -400), id.JurisdictionCalifornia)

	_, err := s.service.AddRule(s.ctx, Rule{
		EntityType:   EntityConsentRecord,
		PeriodDays:   365,
		Jurisdiction: id.JurisdictionEU,
		Active:       true,
	})
	s.Require().NoError(err)

	job, err := s.service.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(JobCompleted, job.Status)
	s.EqualValues(1, job.DeletedCount)

	gone, err := s.ledger.Query(s.ctx, ledger.Query{SubjectID: old.SubjectID})
	s.Require().NoError(err)
	s.Empty(gone)

	kept, err := s.ledger.Query(s.ctx, ledger.Query{SubjectID: recent.SubjectID})
	s.Require().NoError(err)
	s.Len(kept, 1)
	kept, err = s.ledger.Query(s.ctx, ledger.Query{SubjectID: otherJurisdiction.SubjectID})
	s.Require().NoError(err)
	s.Len(kept, 1)

	events, err := s.audits.List(s.ctx, audit.Query{Type: audit.EventRetentionRuleApplied})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("consent_record", events[0].Details["entity"])
}

func (s *ServiceSuite) TestRunCleansSettledRequests() {
	stale := &request.SubjectRequest{
		ID:        id.NewSubjectRequestID(),
		SubjectID: id.NewSubjectID(),
		Kind:      request.KindExport,
		Status:    request.StatusCompleted,
		CreatedAt: s.now.AddDate(0, 0, -40),
		UpdatedAt: s.now.AddDate(0, 0, -40),
	}
	pending := &request.SubjectRequest{
		ID:        id.NewSubjectRequestID(),
		SubjectID: stale.SubjectID,
		Kind:      request.KindDeletion,
		Status:    request.StatusPending,
		CreatedAt: s.now.AddDate(0, 0, -40),
		UpdatedAt: s.now.AddDate(0, 0, -40),
	}
	s.Require().NoError(s.requests.Create(s.ctx, stale))
	s.Require().NoError(s.requests.Create(s.ctx, pending))

	_, err := s.service.AddRule(s.ctx, Rule{
		EntityType: EntitySubjectRequest,
		PeriodDays: 30,
		Active:     true,
	})
	s.Require().NoError(err)

	job, err := s.service.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(JobCompleted, job.Status)
	s.EqualValues(1, job.DeletedCount)

	remaining, err := s.requests.ListBySubject(s.ctx, stale.SubjectID)
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal(request.StatusPending, remaining[0].Status, "pending requests survive however old they are")
}

func (s *ServiceSuite) TestRunPseudonymizesDormantSubjects() {
	dormant := &subject.Subject{
		ID:         id.NewSubjectID(),
		Email:      "dormant@example.com",
		ExternalID: "crm-81",
		Region:     id.JurisdictionEU,
		CreatedAt:  s.now.AddDate(-3, 0, 0),
		UpdatedAt:  s.now.AddDate(-3, 0, 0),
	}
	fresh := &subject.Subject{
		ID:        id.NewSubjectID(),
		Email:     "fresh@example.com",
		Region:    id.JurisdictionEU,
		CreatedAt: s.now.AddDate(0, -1, 0),
		UpdatedAt: s.now.AddDate(0, -1, 0),
	}
	s.Require().NoError(s.subjects.Create(s.ctx, dormant))
	s.Require().NoError(s.subjects.Create(s.ctx, fresh))

	_, err := s.service.AddRule(s.ctx, Rule{EntityType: EntitySubject, PeriodDays: 730, Active: true})
	s.Require().NoError(err)

	job, err := s.service.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(JobCompleted, job.Status)
	s.EqualValues(1, job.DeletedCount)

	scrubbed, err := s.subjects.FindByID(s.ctx, dormant.ID)
	s.Require().NoError(err)
	s.NotEqual("dormant@example.com", scrubbed.Email)
	s.NotEqual("crm-81", scrubbed.ExternalID)
	s.NotNil(scrubbed.DeletedAt)

	untouched, err := s.subjects.FindByID(s.ctx, fresh.ID)
	s.Require().NoError(err)
	s.Equal("fresh@example.com", untouched.Email)

	events, err := s.audits.List(s.ctx, audit.Query{Type: audit.EventSubjectPseudonymized})
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *ServiceSuite) TestRunFailureKeepsEarlierWork() {
	s.seedRecord(s.now.AddDate(0, 0, -400), id.JurisdictionEU)

	_, err := s.service.AddRule(s.ctx, Rule{EntityType: EntityConsentRecord, PeriodDays: 365, Active: true})
	s.Require().NoError(err)

	s.service.subjects = &failingJanitor{}
	_, err = s.service.AddRule(s.ctx, Rule{EntityType: EntitySubject, PeriodDays: 730, Active: true})
	s.Require().NoError(err)

	job, err := s.service.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(JobFailed, job.Status)
	s.Contains(job.Error, "directory offline")
	s.EqualValues(1, job.DeletedCount)

	var failedEntries int
	for _, entry := range job.Log {
		if entry.Error != "" {
			failedEntries++
		}
	}
	s.Equal(1, failedEntries)

	events, err := s.audits.List(s.ctx, audit.Query{Type: audit.EventRetentionFailed})
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *ServiceSuite) TestRunRecordsJobHistory() {
	for range 3 {
		_, err := s.service.Run(s.ctx)
		s.Require().NoError(err)
	}

	jobs, err := s.service.Jobs(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(jobs, 2)
	for _, job := range jobs {
		s.Equal(JobCompleted, job.Status)
		s.NotNil(job.FinishedAt)
		s.NotEmpty(job.Log)
	}
}

func (s *ServiceSuite) TestSeedRules() {
	schedule := []byte(`{"schedules": [
		{"entity": "consents", "keep_days": 365, "region": "eu"},
		{"entity": "users", "keep_days": 730, "enabled": false}
	]}`)

	s.Require().NoError(s.service.SeedRules(s.ctx, schedule))

	rules, err := s.service.Rules(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rules, 2)

	s.Run("reseeding is a no-op", func() {
		s.Require().NoError(s.service.SeedRules(s.ctx, schedule))
		rules, err := s.service.Rules(s.ctx)
		s.Require().NoError(err)
		s.Len(rules, 2)
	})
}

// failingJanitor simulates a subject directory outage.
type failingJanitor struct{}

func (f *failingJanitor) ListInactiveBefore(context.Context, time.Time) ([]*subject.Subject, error) {
	return nil, errors.New("subject directory offline")
}

func (f *failingJanitor) Pseudonymize(context.Context, id.SubjectID, string, string, time.Time) error {
	return errors.New("subject directory offline")
}
