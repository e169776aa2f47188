package index

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/campusd/internal/embeddings"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/fyrsmithlabs/campusd/internal/index"

// DefaultBatchSize is the number of texts embedded per provider call.
const DefaultBatchSize = 64

// Build embeds every document and assembles an in-memory index.
func Build(ctx context.Context, embedder embeddings.Embedder, docs []Document, batchSize int) (ix *Index, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "index.Build")
	defer span.End()
	span.SetAttributes(attribute.Int("index.documents", len(docs)))

	start := time.Now()
	defer func() {
		buildDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			buildsTotal.WithLabelValues("error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		buildsTotal.WithLabelValues("success").Inc()
	}()

	if len(docs) == 0 {
		return nil, ErrEmptyCorpus
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	texts := make([]string, len(docs))
	sources := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
		sources[i] = d.Source
	}

	vectors, err := embeddings.EmbedInBatches(ctx, embedder, texts, batchSize)
	if err != nil {
		return nil, fmt.Errorf("embedding corpus: %w", err)
	}

	ix, err = New(vectors, texts, sources)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("index.dimension", ix.Dimension()))
	return ix, nil
}

// BuildAndSave builds an index and persists it to dir.
func BuildAndSave(ctx context.Context, embedder embeddings.Embedder, docs []Document, batchSize int, dir string) (*Index, error) {
	ix, err := Build(ctx, embedder, docs, batchSize)
	if err != nil {
		return nil, err
	}
	if err := ix.Save(dir); err != nil {
		return nil, fmt.Errorf("saving index: %w", err)
	}
	return ix, nil
}
