package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/artgluhovskiy/vertex-sub001/domain/services"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
	"github.com/artgluhovskiy/vertex-sub001/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashProvider(t *testing.T) {
	ctx := context.Background()
	p := NewHashProvider(64, services.NewDefaultTextAnalyzer(), testutil.NewFixedClock(time.Time{}))

	t.Run("deterministic and normalized", func(t *testing.T) {
		a, err := p.Generate(ctx, "raft consensus protocol", HashProviderName)
		require.NoError(t, err)
		b, err := p.Generate(ctx, "raft consensus protocol", HashProviderName)
		require.NoError(t, err)

		assert.Equal(t, a.Vector().Values(), b.Vector().Values())
		assert.InDelta(t, 1.0, a.Vector().Norm(), 1e-6)
		assert.Equal(t, 64, a.Dimension())
	})

	t.Run("similar text is closer than unrelated text", func(t *testing.T) {
		base, _ := p.Generate(ctx, "raft consensus leader election", HashProviderName)
		near, _ := p.Generate(ctx, "raft leader election timeout", HashProviderName)
		far, _ := p.Generate(ctx, "sourdough bread flour water", HashProviderName)

		simNear, err := base.Vector().Dot(near.Vector())
		require.NoError(t, err)
		simFar, err := base.Vector().Dot(far.Vector())
		require.NoError(t, err)
		assert.Greater(t, simNear, simFar)
	})

	t.Run("text without tokens is a permanent failure", func(t *testing.T) {
		_, err := p.Generate(ctx, "the and of", HashProviderName)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsProviderFailure(err))
		assert.False(t, pkgerrors.IsTransient(err))
	})

	t.Run("batch keeps order", func(t *testing.T) {
		texts := []string{"alpha beta", "gamma delta", "epsilon zeta"}
		out, err := p.GenerateBatch(ctx, texts, HashProviderName)
		require.NoError(t, err)
		require.Len(t, out, 3)
		for i, text := range texts {
			single, err := p.Generate(ctx, text, HashProviderName)
			require.NoError(t, err)
			assert.Equal(t, single.Vector().Values(), out[i].Vector().Values())
		}
	})
}
