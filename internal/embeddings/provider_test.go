package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fyrsmithlabs/campusd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewProvider(t *testing.T) {
	t.Run("hash", func(t *testing.T) {
		p, err := NewProvider(ProviderConfig{Provider: "hash", Dimension: 16}, nil)
		require.NoError(t, err)
		assert.Equal(t, 16, p.Dimension())
		assert.NoError(t, p.Close())
	})

	t.Run("hash without dimension", func(t *testing.T) {
		_, err := NewProvider(ProviderConfig{Provider: "hash"}, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("tei uses known model dimension", func(t *testing.T) {
		p, err := NewProvider(ProviderConfig{
			Provider:  "tei",
			BaseURL:   "http://localhost:8080",
			Model:     "BAAI/bge-base-en-v1.5",
			Dimension: 384,
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, 768, p.Dimension())
	})

	t.Run("tei without base url", func(t *testing.T) {
		_, err := NewProvider(ProviderConfig{Provider: "tei"}, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("openai", func(t *testing.T) {
		p, err := NewProvider(ProviderConfig{
			Provider: "openai",
			BaseURL:  "http://localhost:1234/v1",
			Model:    "text-embedding-3-small",
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1536, p.Dimension())
	})

	t.Run("ollama with configured dimension", func(t *testing.T) {
		p, err := NewProvider(ProviderConfig{
			Provider:  "ollama",
			BaseURL:   "http://localhost:11434",
			Model:     "custom-embed",
			Dimension: 512,
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, 512, p.Dimension())
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewProvider(ProviderConfig{Provider: "word2vec"}, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestProviderConfigFrom(t *testing.T) {
	pc := ProviderConfigFrom(config.EmbeddingsConfig{
		Provider:  "openai",
		Model:     "text-embedding-3-small",
		BaseURL:   "https://api.openai.com/v1",
		APIKey:    config.Secret("sk-test"),
		CacheDir:  "/tmp/models",
		Dimension: 384,
	})
	assert.Equal(t, "openai", pc.Provider)
	assert.Equal(t, "sk-test", pc.APIKey)
	assert.Equal(t, "/tmp/models", pc.CacheDir)
}

func TestDetectDimensionFromModel(t *testing.T) {
	assert.Equal(t, 384, detectDimensionFromModel("sentence-transformers/all-MiniLM-L6-v2"))
	assert.Equal(t, 768, detectDimensionFromModel("acme/encoder-base"))
	assert.Equal(t, 1024, detectDimensionFromModel("acme/encoder-large"))
	assert.Equal(t, 384, detectDimensionFromModel("mystery"))
}

type countingEmbedder struct {
	calls [][]string
	fail  bool
}

func (c *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	c.calls = append(c.calls, texts)
	if c.fail {
		return nil, errors.New("backend down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

func (c *countingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func TestEmbedInBatches(t *testing.T) {
	e := &countingEmbedder{}
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}

	vecs, err := EmbedInBatches(context.Background(), e, texts, 2)
	require.NoError(t, err)
	assert.Len(t, e.calls, 3)
	assert.Equal(t, []string{"eeeee"}, e.calls[2])
	require.Len(t, vecs, 5)
	assert.Equal(t, float32(4), vecs[3][0])

	t.Run("error carries batch range", func(t *testing.T) {
		_, err := EmbedInBatches(context.Background(), &countingEmbedder{fail: true}, texts, 2)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch 0-2")
	})

	t.Run("non-positive size means one batch", func(t *testing.T) {
		e := &countingEmbedder{}
		_, err := EmbedInBatches(context.Background(), e, texts, 0)
		require.NoError(t, err)
		assert.Len(t, e.calls, 1)
	})
}

func TestMetrics_RecordGeneration(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := newMetricsWithMeter(mp.Meter(instrumentationName), nil)

	ctx := context.Background()
	m.RecordGeneration(ctx, "hash", "embed_documents", 10*time.Millisecond, 8, nil)
	m.RecordGeneration(ctx, "hash", "embed_query", 2*time.Millisecond, 1, errors.New("boom"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			found[md.Name] = true
			if md.Name == "campusd.embedding.errors_total" {
				sum, ok := md.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				require.Len(t, sum.DataPoints, 1)
				assert.Equal(t, int64(1), sum.DataPoints[0].Value)
			}
		}
	}
	assert.True(t, found["campusd.embedding.generation_duration_seconds"])
	assert.True(t, found["campusd.embedding.batch_size"])
	assert.True(t, found["campusd.embedding.errors_total"])

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.RecordGeneration(ctx, "x", "y", time.Second, 1, nil)
	})
}
