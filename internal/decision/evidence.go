package decision

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"consentry/internal/subject"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
)

const evidenceTimeout = 3 * time.Second

// gatherEvidence fetches the policy version and ledger state in parallel
// with shared cancellation. Absence of a policy or grant is evidence, not an
// error; anything else aborts the evaluation.
func (s *Service) gatherEvidence(ctx context.Context, sub *subject.Subject, purpose id.Purpose, vendor string, jurisdiction id.Jurisdiction, at time.Time) (Evidence, error) {
	ctx, cancel := context.WithTimeout(ctx, evidenceTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	ev := Evidence{Subject: sub, FetchedAt: at}

	g.Go(func() error {
		start := time.Now()
		version, err := s.catalog.ApplicableVersion(ctx, jurisdiction, sub.Tenant, at)
		s.metrics.EvidenceLatency.WithLabelValues("policy").Observe(time.Since(start).Seconds())
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil
			}
			return err
		}
		ev.PolicyVersion = version
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		grant, err := s.ledger.ActiveGrant(ctx, sub.ID, purpose, vendor, at)
		s.metrics.EvidenceLatency.WithLabelValues("grant").Observe(time.Since(start).Seconds())
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil
			}
			return err
		}
		ev.Grant = grant
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		status, err := s.ledger.CurrentStatus(ctx, sub.ID, purpose)
		s.metrics.EvidenceLatency.WithLabelValues("history").Observe(time.Since(start).Seconds())
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil
			}
			return err
		}
		ev.HasHistory = true
		ev.LedgerStatus = status
		return nil
	})

	if err := g.Wait(); err != nil {
		return Evidence{}, err
	}
	return ev, nil
}
