package subject

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "consentry/pkg/domain"
	"consentry/pkg/platform/sentinel"
	"consentry/pkg/testutil"
)

func TestInMemoryPseudonymize(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sub := &Subject{
		ID:         id.NewSubjectID(),
		Email:      "frank@example.com",
		ExternalID: "crm-11",
		Tenant:     "acme",
		Region:     id.JurisdictionEU,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, store.Create(ctx, sub))

	testutil.Given(t, "a live subject", func(t *testing.T) {
		testutil.When(t, "pseudonymizing it", func(t *testing.T) {
			require.NoError(t, store.Pseudonymize(ctx, sub.ID, "hash-email", "hash-ext", now.Add(time.Hour)))

			testutil.Then(t, "the identifiers are replaced and the row is marked deleted", func(t *testing.T) {
				stored, err := store.FindByID(ctx, sub.ID)
				require.NoError(t, err)
				assert.Equal(t, "hash-email", stored.Email)
				assert.Equal(t, "hash-ext", stored.ExternalID)
				assert.NotNil(t, stored.DeletedAt)
			})
		})

		testutil.When(t, "pseudonymizing it again", func(t *testing.T) {
			err := store.Pseudonymize(ctx, sub.ID, "other-email", "other-ext", now.Add(2*time.Hour))

			testutil.Then(t, "the store reports not found and leaves the row alone", func(t *testing.T) {
				assert.ErrorIs(t, err, sentinel.ErrNotFound)
				stored, ferr := store.FindByID(ctx, sub.ID)
				require.NoError(t, ferr)
				assert.Equal(t, "hash-email", stored.Email)
			})
		})
	})

	testutil.Given(t, "an unknown subject", func(t *testing.T) {
		testutil.When(t, "pseudonymizing it", func(t *testing.T) {
			err := store.Pseudonymize(ctx, id.NewSubjectID(), "h", "h", now)
			assert.ErrorIs(t, err, sentinel.ErrNotFound)
		})
	})
}
