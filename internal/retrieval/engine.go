// Package retrieval answers top-k similarity queries against the served
// chunk index and owns its rebuild and reload lifecycle.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/campusd/internal/embeddings"
	"github.com/fyrsmithlabs/campusd/internal/index"
	"github.com/fyrsmithlabs/campusd/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/fyrsmithlabs/campusd/internal/retrieval"

// ErrNoIndexDir is returned by Reload when the engine has no index directory.
var ErrNoIndexDir = errors.New("no index directory configured")

// Engine embeds query text and searches the current index. Queries never
// block on rebuilds: a rebuild produces a complete new index and swaps it
// into the store.
type Engine struct {
	store     *index.Store
	embedder  embeddings.Embedder
	logger    *logging.Logger
	tracer    trace.Tracer
	dir       string
	batchSize int

	// lifecycle serializes Rebuild and Reload.
	lifecycle sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithIndexDir sets the directory Rebuild persists to and Reload reads from.
func WithIndexDir(dir string) Option {
	return func(e *Engine) { e.dir = dir }
}

// WithBatchSize sets how many chunks are embedded per provider call during Rebuild.
func WithBatchSize(n int) Option {
	return func(e *Engine) { e.batchSize = n }
}

// NewEngine creates an engine serving from store.
func NewEngine(store *index.Store, embedder embeddings.Embedder, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		embedder:  embedder,
		logger:    logging.NewNop(),
		tracer:    otel.Tracer(tracerName),
		batchSize: index.DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve returns up to topK chunks nearest to text. With no index loaded it
// returns an empty slice without embedding anything.
func (e *Engine) Retrieve(ctx context.Context, text string, topK int) (chunks []index.RetrievedChunk, err error) {
	ctx, span := e.tracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("retrieval.top_k", topK))

	start := time.Now()
	result := "hit"
	defer func() {
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		queriesTotal.WithLabelValues(result).Inc()
		queryDuration.Observe(time.Since(start).Seconds())
	}()

	ix := e.store.Current()
	span.SetAttributes(attribute.Bool("retrieval.index_absent", ix == nil))
	if ix == nil {
		result = "absent"
		return []index.RetrievedChunk{}, nil
	}
	if topK <= 0 {
		result = "empty"
		return []index.RetrievedChunk{}, nil
	}

	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	chunks, err = ix.Query(vec, topK)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		result = "empty"
	}
	span.SetAttributes(attribute.Int("retrieval.results", len(chunks)))
	e.logger.Trace(ctx, "retrieved chunks", zap.Int("count", len(chunks)))
	return chunks, nil
}

// Rebuild builds a new index from docs, persists it when an index directory
// is configured, and swaps it in. The previous index keeps serving until the
// swap and stays in place if the build fails.
func (e *Engine) Rebuild(ctx context.Context, docs []index.Document) (*index.Index, error) {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	var (
		ix  *index.Index
		err error
	)
	if e.dir != "" {
		ix, err = index.BuildAndSave(ctx, e.embedder, docs, e.batchSize, e.dir)
	} else {
		ix, err = index.Build(ctx, e.embedder, docs, e.batchSize)
	}
	if err != nil {
		e.logger.Error(ctx, "index rebuild failed", zap.Error(err))
		return nil, err
	}

	e.store.Swap(ix)
	e.logger.Info(ctx, "index rebuilt",
		zap.Int("chunks", ix.Len()),
		zap.Int("dimension", ix.Dimension()),
	)
	return ix, nil
}

// Reload reads the index directory and swaps in what it finds. A missing
// index.bin swaps in the absent index; a load error keeps the current one.
func (e *Engine) Reload(ctx context.Context) (*index.Index, error) {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.dir == "" {
		return nil, ErrNoIndexDir
	}

	_, span := e.tracer.Start(ctx, "retrieval.Reload")
	defer span.End()

	ix, err := index.Load(e.dir)
	if err != nil {
		reloadsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn(ctx, "index reload failed, keeping current index",
			zap.String("dir", e.dir),
			zap.Error(err),
		)
		return nil, err
	}

	e.store.Swap(ix)
	if ix == nil {
		reloadsTotal.WithLabelValues("absent").Inc()
		e.logger.Warn(ctx, "no index found, retrieval disabled", zap.String("dir", e.dir))
		return nil, nil
	}
	reloadsTotal.WithLabelValues("success").Inc()
	e.logger.Info(ctx, "index loaded",
		zap.String("dir", e.dir),
		zap.Int("chunks", ix.Len()),
		zap.Int("dimension", ix.Dimension()),
	)
	return ix, nil
}

// Stats describes the served index.
type Stats struct {
	Absent    bool   `json:"absent"`
	Chunks    int    `json:"chunks"`
	Dimension int    `json:"dimension"`
	Dir       string `json:"dir,omitempty"`
}

// Stats reports the current index state.
func (e *Engine) Stats() Stats {
	ix := e.store.Current()
	return Stats{
		Absent:    ix == nil,
		Chunks:    ix.Len(),
		Dimension: ix.Dimension(),
		Dir:       e.dir,
	}
}

// Dir returns the configured index directory.
func (e *Engine) Dir() string {
	return e.dir
}
