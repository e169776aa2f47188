package embeddings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLCEmbedder struct {
	err error
}

func (f *fakeLCEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (f *fakeLCEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{4, 5, 6}, nil
}

func TestLangChainProvider(t *testing.T) {
	ctx := context.Background()
	p := newLangChainProvider(&fakeLCEmbedder{}, "nomic-embed-text", 3, nil)

	vecs, err := p.EmbedDocuments(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	vec, err := p.EmbedQuery(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 5, 6}, vec)
	assert.Equal(t, 3, p.Dimension())
	assert.NoError(t, p.Close())

	_, err = p.EmbedDocuments(ctx, nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
	_, err = p.EmbedQuery(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestLangChainProvider_BackendError(t *testing.T) {
	p := newLangChainProvider(&fakeLCEmbedder{err: errors.New("connection refused")}, "m", 3, nil)

	_, err := p.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNewLangChainProvider_Validation(t *testing.T) {
	_, err := NewLangChainProvider(LangChainConfig{Backend: "openai"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewLangChainProvider(LangChainConfig{Backend: "cohere", Model: "x"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
