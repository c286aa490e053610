//go:build integration

package ledger_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consentry/internal/ledger"
	"consentry/internal/subject"
	id "consentry/pkg/domain"
	"consentry/pkg/platform/sentinel"
	"consentry/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *ledger.PostgresStore
	subjects *subject.PostgresStore
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
	s.store = ledger.NewPostgresStore(s.postgres.DB)
	s.subjects = subject.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) newSubject() id.SubjectID {
	sub := &subject.Subject{
		ID:        id.NewSubjectID(),
		Email:     fmt.Sprintf("%s@example.com", id.NewSubjectID()),
		Region:    id.JurisdictionEU,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	s.Require().NoError(s.subjects.Create(context.Background(), sub))
	return sub.ID
}

func (s *PostgresStoreSuite) insert(subjectID id.SubjectID, purpose id.Purpose, vendor string, status id.ConsentStatus, from time.Time, until *time.Time) *ledger.ConsentRecord {
	rec := &ledger.ConsentRecord{
		ID:           id.NewConsentRecordID(),
		SubjectID:    subjectID,
		Purpose:      purpose,
		Vendor:       vendor,
		LegalBasis:   id.BasisConsent,
		Status:       status,
		Jurisdiction: id.JurisdictionEU,
		ValidFrom:    from,
		ValidUntil:   until,
		Source:       "web",
		CreatedAt:    from,
	}
	s.Require().NoError(s.store.Insert(context.Background(), rec))
	return rec
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	subjectID := s.newSubject()
	until := s.now.Add(time.Hour)
	rec := s.insert(subjectID, id.PurposeMarketing, "vendor-a", id.StatusGranted, s.now, &until)

	got, err := s.store.Query(ctx, ledger.Query{SubjectID: subjectID})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(rec.ID, got[0].ID)
	s.Equal("vendor-a", got[0].Vendor)
	s.Equal(id.BasisConsent, got[0].LegalBasis)
	s.Require().NotNil(got[0].ValidUntil)
	s.True(got[0].ValidUntil.Equal(until))
}

func (s *PostgresStoreSuite) TestOverlapLookupAndClose() {
	ctx := context.Background()
	subjectID := s.newSubject()
	rec := s.insert(subjectID, id.PurposeMarketing, "", id.StatusGranted, s.now, nil)

	s.Run("vendor and basis are part of the key", func() {
		other := s.insert(subjectID, id.PurposeMarketing, "vendor-a", id.StatusGranted, s.now, nil)
		got, err := s.store.FindOverlappingGrants(ctx, rec.Key(), s.now.Add(time.Minute), nil)
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(rec.ID, got[0].ID)

		got, err = s.store.FindOverlappingGrants(ctx, other.Key(), s.now.Add(time.Minute), nil)
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(other.ID, got[0].ID)
	})

	s.Run("close without withdraw keeps granted status", func() {
		cutoff := s.now.Add(30 * time.Minute)
		s.Require().NoError(s.store.CloseWindow(ctx, rec.ID, cutoff, false))

		got, err := s.store.Query(ctx, ledger.Query{SubjectID: subjectID, Status: id.StatusGranted})
		s.Require().NoError(err)
		for _, r := range got {
			if r.ID == rec.ID {
				s.Require().NotNil(r.ValidUntil)
				s.True(r.ValidUntil.Equal(cutoff))
			}
		}
	})

	s.Run("closed window no longer overlaps later instants", func() {
		got, err := s.store.FindOverlappingGrants(ctx, rec.Key(), s.now.Add(45*time.Minute), nil)
		s.Require().NoError(err)
		s.Empty(got)
	})
}

func (s *PostgresStoreSuite) TestActiveGrantAndNewest() {
	ctx := context.Background()
	subjectID := s.newSubject()

	_, err := s.store.FindActiveGrant(ctx, subjectID, id.PurposeMarketing, "", s.now)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Newest(ctx, subjectID, id.PurposeMarketing)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.insert(subjectID, id.PurposeMarketing, "", id.StatusGranted, s.now.Add(-time.Hour), nil)
	denied := s.insert(subjectID, id.PurposeMarketing, "", id.StatusDenied, s.now, nil)

	active, err := s.store.FindActiveGrant(ctx, subjectID, id.PurposeMarketing, "", s.now)
	s.Require().NoError(err)
	s.Equal(id.StatusGranted, active.Status)

	newest, err := s.store.Newest(ctx, subjectID, id.PurposeMarketing)
	s.Require().NoError(err)
	s.Equal(denied.ID, newest.ID)
}

func (s *PostgresStoreSuite) TestExpireLapsed() {
	ctx := context.Background()
	subjectID := s.newSubject()
	past := s.now.Add(-time.Minute)
	future := s.now.Add(time.Hour)

	lapsed := s.insert(subjectID, id.PurposeMarketing, "", id.StatusGranted, s.now.Add(-time.Hour), &past)
	s.insert(subjectID, id.PurposeAnalytics, "", id.StatusGranted, s.now.Add(-time.Hour), &future)

	expired, err := s.store.ExpireLapsed(ctx, s.now)
	s.Require().NoError(err)
	s.Require().Len(expired, 1)
	s.Equal(lapsed.ID, expired[0].ID)
	s.Equal(id.StatusExpired, expired[0].Status)

	again, err := s.store.ExpireLapsed(ctx, s.now)
	s.Require().NoError(err)
	s.Empty(again)
}

func (s *PostgresStoreSuite) TestDeleteOlderThan() {
	ctx := context.Background()
	subjectID := s.newSubject()

	s.insert(subjectID, id.PurposeMarketing, "", id.StatusRevoked, s.now.Add(-72*time.Hour), nil)
	s.insert(subjectID, id.PurposeMarketing, "", id.StatusGranted, s.now, nil)

	deleted, err := s.store.DeleteOlderThan(ctx, s.now.Add(-24*time.Hour), "", id.BasisConsent)
	s.Require().NoError(err)
	s.EqualValues(1, deleted)

	left, err := s.store.Query(ctx, ledger.Query{SubjectID: subjectID})
	s.Require().NoError(err)
	s.Len(left, 1)
}
