package retention

import (
	"context"

	id "consentry/pkg/domain"
)

// RuleStore persists retention rules.
type RuleStore interface {
	Create(ctx context.Context, r *Rule) error
	List(ctx context.Context) ([]*Rule, error)
	ListActive(ctx context.Context) ([]*Rule, error)
	SetActive(ctx context.Context, ruleID id.RetentionRuleID, active bool) error
}

// JobStore persists run records.
type JobStore interface {
	Create(ctx context.Context, j *Job) error
	Update(ctx context.Context, j *Job) error
	List(ctx context.Context, limit int) ([]*Job, error)
}
