package embeddings

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/campusd/internal/config"
	"go.uber.org/zap"
)

// Embedder turns text into vectors. Document and query embeddings may differ
// for models that use passage/query prefixes.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder with a fixed output dimension and releasable resources.
type Provider interface {
	Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is one of fastembed, tei, openai, ollama or hash.
	Provider string
	Model    string
	// BaseURL is the remote endpoint for tei, openai and ollama.
	BaseURL string
	APIKey  string
	// CacheDir is the model cache directory for fastembed.
	CacheDir string
	// Dimension is used by the hash provider and as an override for remote
	// models with unknown dimensions.
	Dimension int
}

// ProviderConfigFrom maps the service embeddings settings to a ProviderConfig.
func ProviderConfigFrom(cfg config.EmbeddingsConfig) ProviderConfig {
	return ProviderConfig{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey.Value(),
		CacheDir:  cfg.CacheDir,
		Dimension: cfg.Dimension,
	}
}

// knownDimensions lists output sizes for models campusd is commonly run with.
var knownDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
	"fast-bge-small-zh-v1.5":                 512,
	"fast-all-MiniLM-L6-v2":                  384,
	"text-embedding-3-small":                 1536,
	"text-embedding-3-large":                 3072,
	"text-embedding-ada-002":                 1536,
	"nomic-embed-text":                       768,
	"mxbai-embed-large":                      1024,
	"all-minilm":                             384,
}

// detectDimensionFromModel returns the embedding dimension for a model name,
// falling back to name heuristics and finally 384.
func detectDimensionFromModel(model string) int {
	if dim, ok := knownDimensions[model]; ok {
		return dim
	}
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "large"):
		return 1024
	case strings.Contains(lower, "base"):
		return 768
	default:
		return 384
	}
}

// remoteDimension picks the dimension for HTTP-backed providers: a known model
// wins, then the configured override, then name heuristics.
func remoteDimension(cfg ProviderConfig) int {
	if dim, ok := knownDimensions[cfg.Model]; ok {
		return dim
	}
	if cfg.Dimension > 0 {
		return cfg.Dimension
	}
	return detectDimensionFromModel(cfg.Model)
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := NewMetrics(logger)

	dim := remoteDimension(cfg)

	switch cfg.Provider {
	case "fastembed", "":
		p, err := NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "tei":
		svc, err := NewService(Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		}, metrics)
		if err != nil {
			return nil, err
		}
		return &teiProvider{Service: svc, dimension: dim}, nil
	case "openai", "ollama":
		p, err := NewLangChainProvider(LangChainConfig{
			Backend:   cfg.Provider,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: dim,
		}, metrics)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "hash":
		if cfg.Dimension <= 0 {
			return nil, fmt.Errorf("%w: hash provider requires a positive dimension", ErrInvalidConfig)
		}
		return NewHashProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// teiProvider wraps Service to implement Provider.
type teiProvider struct {
	*Service
	dimension int
}

func (t *teiProvider) Dimension() int {
	return t.dimension
}

// Close is a no-op for TEI since it uses HTTP.
func (t *teiProvider) Close() error {
	return nil
}

// EmbedInBatches embeds texts in chunks of at most size, preserving order.
func EmbedInBatches(ctx context.Context, e Embedder, texts []string, size int) ([][]float32, error) {
	if size <= 0 {
		size = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := e.EmbedDocuments(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%w: batch %d-%d returned %d vectors", ErrEmbeddingFailed, start, end, len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}
