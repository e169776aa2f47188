package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}

func TestHashProvider(t *testing.T) {
	h := NewHashProvider(64)
	ctx := context.Background()

	t.Run("deterministic and normalized", func(t *testing.T) {
		a, err := h.EmbedQuery(ctx, "Library opens at 8am")
		require.NoError(t, err)
		b, err := h.EmbedQuery(ctx, "library OPENS at 8am!")
		require.NoError(t, err)
		assert.Equal(t, a, b)

		var norm float64
		for _, v := range a {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	})

	t.Run("shared words are closer", func(t *testing.T) {
		docs, err := h.EmbedDocuments(ctx, []string{
			"bus route shuttle timings",
			"hostel mess menu",
		})
		require.NoError(t, err)
		q, err := h.EmbedQuery(ctx, "shuttle route")
		require.NoError(t, err)
		assert.Less(t, l2(q, docs[0]), l2(q, docs[1]))
	})

	t.Run("punctuation only yields zero vector", func(t *testing.T) {
		v, err := h.EmbedQuery(ctx, "?!")
		require.NoError(t, err)
		assert.Len(t, v, 64)
		for _, x := range v {
			assert.Zero(t, x)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := h.EmbedDocuments(ctx, nil)
		assert.ErrorIs(t, err, ErrEmptyInput)
		_, err = h.EmbedQuery(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := h.EmbedDocuments(cctx, []string{"x"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
