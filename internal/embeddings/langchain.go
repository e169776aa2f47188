package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainConfig configures an OpenAI-compatible or Ollama embedder.
type LangChainConfig struct {
	// Backend is openai or ollama.
	Backend string
	BaseURL string
	Model   string
	APIKey  string
	// Dimension is reported by Dimension; the remote model decides the real size.
	Dimension int
	BatchSize int
}

// LangChainProvider adapts a langchaingo embedder to Provider.
type LangChainProvider struct {
	embedder  lcembeddings.Embedder
	model     string
	dimension int
	metrics   *Metrics
}

// NewLangChainProvider builds the backend client and wraps it in a batching embedder.
func NewLangChainProvider(cfg LangChainConfig, metrics *Metrics) (*LangChainProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}

	var client lcembeddings.EmbedderClient
	switch cfg.Backend {
	case "openai":
		// langchaingo insists on a token even for local OpenAI-compatible servers.
		token := strings.TrimPrefix(cfg.APIKey, "Bearer ")
		if token == "" {
			token = "placeholder"
		}
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithToken(token),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating OpenAI client: %w", err)
		}
		client = llm
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating Ollama client: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("%w: unknown langchain backend %q", ErrInvalidConfig, cfg.Backend)
	}

	embedder, err := lcembeddings.NewEmbedder(client, lcembeddings.WithBatchSize(cfg.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return newLangChainProvider(embedder, cfg.Model, cfg.Dimension, metrics), nil
}

func newLangChainProvider(e lcembeddings.Embedder, model string, dim int, metrics *Metrics) *LangChainProvider {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &LangChainProvider{
		embedder:  e,
		model:     model,
		dimension: dim,
		metrics:   metrics,
	}
}

// EmbedDocuments embeds texts through the backend.
func (p *LangChainProvider) EmbedDocuments(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, "embed_documents", time.Since(start), len(texts), err)
	}()

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	vectors, err = p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// EmbedQuery embeds a single query through the backend.
func (p *LangChainProvider) EmbedQuery(ctx context.Context, text string) (vector []float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, "embed_query", time.Since(start), 1, err)
	}()

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vector, err = p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vector, nil
}

func (p *LangChainProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op; the HTTP clients hold no resources.
func (p *LangChainProvider) Close() error {
	return nil
}
