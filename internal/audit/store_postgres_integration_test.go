//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"consentry/internal/audit"
	id "consentry/pkg/domain"
	"consentry/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *audit.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = audit.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) append(subjectID id.SubjectID, typ audit.EventType, at time.Time) audit.Event {
	ev := audit.Event{
		ID:        uuid.New(),
		Category:  typ.Category(),
		Timestamp: at,
		SubjectID: subjectID,
		Actor:     "system",
		Type:      typ,
		Purpose:   "analytics",
		Decision:  "allow",
		Reason:    "explicit_consent",
		Details:   map[string]any{"channel": "web"},
		RequestID: "req-1",
	}
	s.Require().NoError(s.store.Append(context.Background(), ev))
	return ev
}

func (s *PostgresStoreSuite) TestAppendAndList() {
	ctx := context.Background()
	subjectID := id.NewSubjectID()
	want := s.append(subjectID, audit.EventConsentRecorded, s.now)

	events, err := s.store.List(ctx, audit.Query{SubjectID: subjectID})
	s.Require().NoError(err)
	s.Require().Len(events, 1)

	got := events[0]
	s.Equal(want.ID, got.ID)
	s.Equal(audit.CategoryCompliance, got.Category)
	s.True(want.Timestamp.Equal(got.Timestamp))
	s.Equal(subjectID, got.SubjectID)
	s.Equal("system", got.Actor)
	s.Equal(audit.EventConsentRecorded, got.Type)
	s.Equal("analytics", got.Purpose)
	s.Equal("allow", got.Decision)
	s.Equal(map[string]any{"channel": "web"}, got.Details)
	s.Equal("req-1", got.RequestID)
}

func (s *PostgresStoreSuite) TestListFilters() {
	ctx := context.Background()
	alice := id.NewSubjectID()
	bob := id.NewSubjectID()
	s.append(alice, audit.EventConsentRecorded, s.now.Add(-2*time.Hour))
	s.append(alice, audit.EventConsentRevoked, s.now.Add(-time.Hour))
	s.append(bob, audit.EventConsentRecorded, s.now)

	s.Run("by subject newest first", func() {
		events, err := s.store.List(ctx, audit.Query{SubjectID: alice})
		s.Require().NoError(err)
		s.Require().Len(events, 2)
		s.Equal(audit.EventConsentRevoked, events[0].Type)
		s.Equal(audit.EventConsentRecorded, events[1].Type)
	})

	s.Run("by type", func() {
		events, err := s.store.List(ctx, audit.Query{Type: audit.EventConsentRecorded})
		s.Require().NoError(err)
		s.Len(events, 2)
	})

	s.Run("by time window", func() {
		events, err := s.store.List(ctx, audit.Query{
			From: s.now.Add(-90 * time.Minute),
			To:   s.now.Add(-time.Minute),
		})
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.EventConsentRevoked, events[0].Type)
	})

	s.Run("limit", func() {
		events, err := s.store.List(ctx, audit.Query{Limit: 1})
		s.Require().NoError(err)
		s.Len(events, 1)
	})
}

func (s *PostgresStoreSuite) TestOutboxFlow() {
	ctx := context.Background()
	subjectID := id.NewSubjectID()
	s.append(subjectID, audit.EventConsentRecorded, s.now.Add(-time.Minute))
	s.append(id.SubjectID{}, audit.EventRetentionCompleted, s.now)

	entries, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)

	s.Run("subject events aggregate on the subject", func() {
		s.Equal(subjectID.String(), entries[0].AggregateID)
		s.Equal(string(audit.EventConsentRecorded), entries[0].EventType)

		var payload map[string]any
		s.Require().NoError(json.Unmarshal(entries[0].Payload, &payload))
		s.Equal(subjectID.String(), payload["subject_id"])
		s.Equal("consent_recorded", payload["type"])
	})

	s.Run("mark published removes entries from the feed", func() {
		s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{entries[0].ID}))

		remaining, err := s.store.FetchUnpublished(ctx, 10)
		s.Require().NoError(err)
		s.Require().Len(remaining, 1)
		s.Equal(string(audit.EventRetentionCompleted), remaining[0].EventType)
	})

	s.Run("mark published with no ids is a no-op", func() {
		s.NoError(s.store.MarkPublished(ctx, nil))
	})
}
