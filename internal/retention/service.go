package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"

	"consentry/internal/audit"
	"consentry/internal/ledger"
	"consentry/internal/subject"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/requestcontext"
)

var (
	tracer = otel.Tracer("consentry/retention")

	deletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consentry_retention_deleted_total",
		Help: "Records removed by retention runs, by entity",
	}, []string{"entity"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consentry_retention_runs_total",
		Help: "Retention runs by final status",
	}, []string{"status"})
)

// LedgerJanitor is the slice of the ledger store the lifecycle needs.
type LedgerJanitor interface {
	ExpireLapsed(ctx context.Context, now time.Time) ([]*ledger.ConsentRecord, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time, jurisdiction id.Jurisdiction, basis id.LegalBasis) (int64, error)
}

// SubjectJanitor lists dormant subjects and pseudonymizes them.
type SubjectJanitor interface {
	ListInactiveBefore(ctx context.Context, cutoff time.Time) ([]*subject.Subject, error)
	Pseudonymize(ctx context.Context, subjectID id.SubjectID, emailHash, externalHash string, at time.Time) error
}

// RequestJanitor deletes settled subject requests past their horizon.
type RequestJanitor interface {
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service runs the retention lifecycle. A run expires lapsed grants first,
// then applies each active rule; rule failures are recorded and the run
// continues, so one bad rule never blocks the others.
type Service struct {
	rules    RuleStore
	jobs     JobStore
	ledger   LedgerJanitor
	subjects SubjectJanitor
	requests RequestJanitor
	audit    *audit.Publisher
	lease    *Lease
	logger   *slog.Logger
}

func NewService(rules RuleStore, jobs JobStore, ledgerJanitor LedgerJanitor, subjects SubjectJanitor, requests RequestJanitor, auditor *audit.Publisher, lease *Lease, logger *slog.Logger) *Service {
	return &Service{
		rules:    rules,
		jobs:     jobs,
		ledger:   ledgerJanitor,
		subjects: subjects,
		requests: requests,
		audit:    auditor,
		lease:    lease,
		logger:   logger,
	}
}

// AddRule registers a retention rule.
func (s *Service) AddRule(ctx context.Context, r Rule) (*Rule, error) {
	if !r.EntityType.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown entity type %q", r.EntityType)
	}
	if r.PeriodDays <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "period_days must be positive")
	}
	if r.Jurisdiction != "" && !r.Jurisdiction.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid jurisdiction %q", r.Jurisdiction)
	}
	if r.LegalBasis != "" && !r.LegalBasis.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid legal basis %q", r.LegalBasis)
	}

	r.ID = id.NewRetentionRuleID()
	if err := s.rules.Create(ctx, &r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create retention rule")
	}
	return &r, nil
}

// Rules lists all rules, active or not.
func (s *Service) Rules(ctx context.Context) ([]*Rule, error) {
	out, err := s.rules.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list retention rules")
	}
	return out, nil
}

// Jobs lists recent runs, newest first.
func (s *Service) Jobs(ctx context.Context, limit int) ([]*Job, error) {
	out, err := s.jobs.List(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list retention jobs")
	}
	return out, nil
}

// SeedRules loads rules from a legacy schedule, skipping the load when any
// rules already exist so restarts do not duplicate them.
func (s *Service) SeedRules(ctx context.Context, schedule []byte) error {
	existing, err := s.rules.List(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list retention rules")
	}
	if len(existing) > 0 {
		return nil
	}

	parsed, err := ParseLegacySchedule(schedule)
	if err != nil {
		return err
	}
	for _, r := range parsed {
		if err := s.rules.Create(ctx, r); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed retention rule")
		}
	}
	return nil
}

// Run executes one retention pass. Returns CodeConflict when another
// replica holds the lease.
func (s *Service) Run(ctx context.Context) (*Job, error) {
	ctx, span := tracer.Start(ctx, "retention.Run")
	defer span.End()

	now := requestcontext.Now(ctx)
	job := &Job{
		ID:        id.NewRetentionJobID(),
		StartedAt: now,
		Status:    JobRunning,
	}

	acquired, err := s.lease.Acquire(ctx, job.ID.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "retention lease unavailable")
	}
	if !acquired {
		return nil, dErrors.New(dErrors.CodeConflict, "a retention run is already in progress")
	}
	defer func() {
		if err := s.lease.Release(ctx, job.ID.String()); err != nil {
			s.logger.WarnContext(ctx, "failed to release retention lease", "error", err)
		}
	}()

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record retention job")
	}

	var firstErr error
	note := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	note(s.expirePass(ctx, now, job))

	activeRules, err := s.rules.ListActive(ctx)
	if err != nil {
		note(dErrors.Wrap(err, dErrors.CodeInternal, "failed to list retention rules"))
	}
	for _, rule := range activeRules {
		note(s.applyRule(ctx, now, rule, job))
	}

	finished := requestcontext.Now(ctx)
	job.FinishedAt = &finished
	if firstErr != nil {
		job.Status = JobFailed
		job.Error = firstErr.Error()
	} else {
		job.Status = JobCompleted
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to finalize retention job")
	}

	runsTotal.WithLabelValues(string(job.Status)).Inc()

	eventType := audit.EventRetentionCompleted
	if job.Status == JobFailed {
		eventType = audit.EventRetentionFailed
	}
	if err := s.audit.Emit(ctx, audit.Event{
		Type: eventType,
		Details: map[string]any{
			"job_id":        job.ID.String(),
			"deleted_count": job.DeletedCount,
			"rules_applied": len(activeRules),
			"error":         job.Error,
		},
	}); err != nil {
		return job, err
	}
	return job, nil
}

// expirePass flips lapsed grants to expired. It only touches records whose
// windows already closed, so reads before and after the pass agree.
func (s *Service) expirePass(ctx context.Context, now time.Time, job *Job) error {
	start := time.Now()
	expired, err := s.ledger.ExpireLapsed(ctx, now)
	if err != nil {
		job.Log = append(job.Log, LogEntry{Action: "expire", Error: err.Error()})
		return dErrors.Wrap(err, dErrors.CodeInternal, "expire pass failed")
	}
	job.Log = append(job.Log, LogEntry{
		Action:  "expire",
		Count:   int64(len(expired)),
		Elapsed: time.Since(start).String(),
	})
	if len(expired) == 0 {
		return nil
	}

	return s.audit.Emit(ctx, audit.Event{
		Type: audit.EventConsentExpired,
		Details: map[string]any{
			"job_id": job.ID.String(),
			"count":  len(expired),
		},
	})
}

func (s *Service) applyRule(ctx context.Context, now time.Time, rule *Rule, job *Job) error {
	start := time.Now()
	cutoff := rule.Cutoff(now)

	var (
		count int64
		err   error
	)
	switch rule.EntityType {
	case EntityConsentRecord:
		count, err = s.ledger.DeleteOlderThan(ctx, cutoff, rule.Jurisdiction, rule.LegalBasis)
	case EntitySubject:
		count, err = s.pseudonymizeInactive(ctx, cutoff, now)
	case EntitySubjectRequest:
		count, err = s.requests.DeleteCompletedBefore(ctx, cutoff)
	default:
		err = fmt.Errorf("unknown entity type %q", rule.EntityType)
	}

	entry := LogEntry{
		RuleID:  rule.ID.String(),
		Entity:  string(rule.EntityType),
		Action:  "delete",
		Count:   count,
		Elapsed: time.Since(start).String(),
	}
	if err != nil {
		entry.Error = err.Error()
		job.Log = append(job.Log, entry)
		s.logger.ErrorContext(ctx, "retention rule failed",
			"rule_id", rule.ID,
			"entity", rule.EntityType,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "retention rule failed")
	}

	job.DeletedCount += count
	job.Log = append(job.Log, entry)
	deletedTotal.WithLabelValues(string(rule.EntityType)).Add(float64(count))

	return s.audit.Emit(ctx, audit.Event{
		Type: audit.EventRetentionRuleApplied,
		Details: map[string]any{
			"job_id":  job.ID.String(),
			"rule_id": rule.ID.String(),
			"entity":  string(rule.EntityType),
			"cutoff":  cutoff,
			"count":   count,
		},
	})
}

// pseudonymizeInactive replaces identifiers of dormant subjects. History
// stays linked to the subject ID; only the direct identifiers go.
func (s *Service) pseudonymizeInactive(ctx context.Context, cutoff, now time.Time) (int64, error) {
	inactive, err := s.subjects.ListInactiveBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	var count int64
	for _, sub := range inactive {
		emailHash := subject.Pseudonym(sub.ID, now)
		externalHash := ""
		if sub.ExternalID != "" {
			externalHash = subject.Pseudonym(sub.ID, now.Add(time.Nanosecond))
		}
		if err := s.subjects.Pseudonymize(ctx, sub.ID, emailHash, externalHash, now); err != nil {
			return count, err
		}
		if err := s.audit.Emit(ctx, audit.Event{
			Type:      audit.EventSubjectPseudonymized,
			SubjectID: sub.ID,
		}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
