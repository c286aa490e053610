//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers Postgres instance with the service
// schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// Schema migration tooling is out of scope for this service; integration
// tests apply the schema directly.
const schema = `
CREATE TABLE IF NOT EXISTS subjects (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL,
	external_id   TEXT,
	tenant        TEXT NOT NULL DEFAULT '',
	jurisdiction  TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	deleted_at    TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS subjects_active_email
	ON subjects (email) WHERE deleted_at IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS subjects_active_external
	ON subjects (external_id, tenant) WHERE deleted_at IS NULL AND external_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS consent_records (
	id                UUID PRIMARY KEY,
	subject_id        UUID NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
	purpose           TEXT NOT NULL,
	vendor            TEXT,
	legal_basis       TEXT,
	status            TEXT NOT NULL,
	jurisdiction      TEXT NOT NULL,
	valid_from        TIMESTAMPTZ NOT NULL,
	valid_until       TIMESTAMPTZ,
	policy_version_id UUID,
	policy_snapshot   JSONB,
	source            TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS consent_records_key
	ON consent_records (subject_id, purpose, status);

CREATE TABLE IF NOT EXISTS policies (
	id           UUID PRIMARY KEY,
	jurisdiction TEXT NOT NULL,
	tenant       TEXT NOT NULL DEFAULT '',
	name         TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS policies_scope
	ON policies (jurisdiction, tenant);

CREATE TABLE IF NOT EXISTS policy_versions (
	id             UUID PRIMARY KEY,
	policy_id      UUID NOT NULL REFERENCES policies(id) ON DELETE CASCADE,
	version        INT NOT NULL,
	effective_from TIMESTAMPTZ NOT NULL,
	effective_to   TIMESTAMPTZ,
	document       JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	created_by     TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS policy_versions_number
	ON policy_versions (policy_id, version);

CREATE TABLE IF NOT EXISTS retention_rules (
	id           UUID PRIMARY KEY,
	entity_type  TEXT NOT NULL,
	period_days  INT NOT NULL,
	jurisdiction TEXT,
	legal_basis  TEXT,
	active       BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS retention_jobs (
	id            UUID PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	status        TEXT NOT NULL,
	deleted_count INT NOT NULL DEFAULT 0,
	log           JSONB,
	error         TEXT
);

CREATE TABLE IF NOT EXISTS subject_requests (
	id         UUID PRIMARY KEY,
	subject_id UUID NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL,
	reason     TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_events (
	id              UUID PRIMARY KEY,
	category        TEXT NOT NULL,
	occurred_at     TIMESTAMPTZ NOT NULL,
	subject_id      UUID,
	actor           TEXT NOT NULL DEFAULT '',
	event_type      TEXT NOT NULL,
	purpose         TEXT NOT NULL DEFAULT '',
	decision        TEXT NOT NULL DEFAULT '',
	reason          TEXT NOT NULL DEFAULT '',
	details         JSONB,
	policy_snapshot JSONB,
	request_id      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_subject
	ON audit_events (subject_id, occurred_at DESC);

CREATE TABLE IF NOT EXISTS outbox (
	id             UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	published_at   TIMESTAMPTZ
);
`

// NewPostgresContainer starts a Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("consentry_test"),
		tcpostgres.WithUsername("consentry"),
		tcpostgres.WithPassword("consentry"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(context.Background())
	})

	return &PostgresContainer{Container: container, DSN: dsn, DB: db}
}

// TruncateAll clears mutable tables between tests.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `
		TRUNCATE consent_records, subject_requests, audit_events, outbox,
			retention_jobs, retention_rules, policy_versions, policies, subjects
		CASCADE`)
	return err
}
