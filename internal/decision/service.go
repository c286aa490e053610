package decision

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"consentry/internal/audit"
	"consentry/internal/decision/metrics"
	"consentry/internal/decision/ports"
	"consentry/internal/subject"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/requestcontext"
)

var tracer = otel.Tracer("consentry/decision")

// Service orchestrates an evaluation: resolve the subject, settle the
// jurisdiction, gather evidence, run the rules, audit the outcome. For a
// fixed request and instant the evaluation is deterministic; repeated calls
// differ only in their audit entries.
type Service struct {
	subjects ports.SubjectDirectory
	catalog  ports.Catalog
	ledger   ports.Ledger
	resolver ports.JurisdictionResolver
	audit    ports.AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(
	subjects ports.SubjectDirectory,
	catalog ports.Catalog,
	ledgerPort ports.Ledger,
	resolver ports.JurisdictionResolver,
	auditor ports.AuditPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		subjects: subjects,
		catalog:  catalog,
		ledger:   ledgerPort,
		resolver: resolver,
		audit:    auditor,
		metrics:  m,
		logger:   logger,
	}
}

// Evaluate answers "may this processing happen". Denial is a decision, not
// an error; errors mean the question could not be answered, and the caller
// must treat that as a deny.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) (*Decision, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "decision.Evaluate", trace.WithAttributes(
		attribute.String("purpose", req.Purpose.String()),
		attribute.String("vendor", req.Vendor),
	))
	defer span.End()

	if !req.Purpose.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid purpose %q", req.Purpose)
	}
	if req.Jurisdiction != "" && !req.Jurisdiction.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid jurisdiction %q", req.Jurisdiction)
	}

	sub, err := s.subjects.Resolve(ctx, req.Subject)
	if err != nil {
		return nil, err
	}

	at := req.At
	if at.IsZero() {
		at = requestcontext.Now(ctx)
	}
	jurisdiction := s.resolveJurisdiction(ctx, req, sub)
	span.SetAttributes(attribute.String("jurisdiction", jurisdiction.String()))

	ev, err := s.gatherEvidence(ctx, sub, req.Purpose, req.Vendor, jurisdiction, at)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "evidence gathering failed")
	}

	d := evaluate(req.Purpose, req.Vendor, jurisdiction, at, ev)

	if err := s.emitAudit(ctx, sub.ID, req, &d, ev); err != nil {
		return nil, err
	}

	s.metrics.Outcome.WithLabelValues(strconv.FormatBool(d.Allowed), string(d.Source), req.Purpose.String()).Inc()
	s.metrics.EvaluateLatency.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Bool("allowed", d.Allowed),
		attribute.String("source", string(d.Source)),
	)
	return &d, nil
}

// resolveJurisdiction walks the precedence chain: explicit request override,
// the subject's registered region, the client IP, then rest-of-world.
func (s *Service) resolveJurisdiction(ctx context.Context, req EvaluateRequest, sub *subject.Subject) id.Jurisdiction {
	if req.Jurisdiction != "" {
		return req.Jurisdiction
	}
	if sub.Region != "" {
		return sub.Region
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" && s.resolver != nil {
		if j, err := s.resolver.FromIP(ctx, ip); err == nil && j != "" {
			return j
		}
	}
	return id.JurisdictionRestOfWorld
}

func (s *Service) emitAudit(ctx context.Context, subjectID id.SubjectID, req EvaluateRequest, d *Decision, ev Evidence) error {
	outcome := "deny"
	if d.Allowed {
		outcome = "allow"
	}

	var snapshot json.RawMessage
	if ev.PolicyVersion != nil {
		snapshot, _ = json.Marshal(ev.PolicyVersion.Matrix)
	}

	details := map[string]any{
		"vendor":       req.Vendor,
		"jurisdiction": d.Jurisdiction.String(),
		"source":       string(d.Source),
		"evaluated_at": d.EvaluatedAt,
	}
	if !d.ConsentRecordID.IsNil() {
		details["consent_record_id"] = d.ConsentRecordID.String()
	}
	if d.PolicyVersion > 0 {
		details["policy_version"] = d.PolicyVersion
	}

	return s.audit.Emit(ctx, audit.Event{
		Type:           audit.EventDecisionMade,
		SubjectID:      subjectID,
		Purpose:        req.Purpose.String(),
		Decision:       outcome,
		Reason:         strings.Join(d.Reasoning, ","),
		Details:        details,
		PolicySnapshot: snapshot,
	})
}
