package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "consentry/pkg/domain"
)

func TestPrefixResolver(t *testing.T) {
	ctx := context.Background()

	r, err := NewPrefixResolver(map[string]string{
		"203.0.113.0/24":  "eu",
		"203.0.113.0/28":  "uk",
		"198.51.100.0/24": "us-ca",
	}, id.JurisdictionRestOfWorld)
	require.NoError(t, err)

	t.Run("longest prefix wins", func(t *testing.T) {
		j, err := r.FromIP(ctx, "203.0.113.5")
		require.NoError(t, err)
		assert.Equal(t, id.JurisdictionUK, j)

		j, err = r.FromIP(ctx, "203.0.113.200")
		require.NoError(t, err)
		assert.Equal(t, id.JurisdictionEU, j)
	})

	t.Run("unmatched address falls back", func(t *testing.T) {
		j, err := r.FromIP(ctx, "192.0.2.1")
		require.NoError(t, err)
		assert.Equal(t, id.JurisdictionRestOfWorld, j)
	})

	t.Run("garbage input falls back instead of failing", func(t *testing.T) {
		j, err := r.FromIP(ctx, "not-an-ip")
		require.NoError(t, err)
		assert.Equal(t, id.JurisdictionRestOfWorld, j)
	})

	t.Run("bad table is rejected", func(t *testing.T) {
		_, err := NewPrefixResolver(map[string]string{"nope": "eu"}, id.JurisdictionRestOfWorld)
		require.Error(t, err)
		_, err = NewPrefixResolver(map[string]string{"10.0.0.0/8": "atlantis"}, id.JurisdictionRestOfWorld)
		require.Error(t, err)
	})
}
