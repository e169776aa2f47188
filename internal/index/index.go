// Package index implements the flat chunk index: exact squared-L2 nearest
// neighbor search over embedded text chunks, persisted as three co-indexed
// artifacts in a directory.
//
// A nil *Index is the absent index. Every method on it is safe and returns
// empty results, so callers degrade to "nothing retrieved" instead of failing.
package index

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrEmptyCorpus is returned when an index is built from no documents.
	ErrEmptyCorpus = errors.New("index: empty corpus")

	// ErrIncompleteIndex is returned when index.bin exists but a companion file is missing.
	ErrIncompleteIndex = errors.New("index: incomplete artifacts")

	// ErrIndexMismatch is returned when vectors, texts and sources differ in length.
	ErrIndexMismatch = errors.New("index: artifact length mismatch")

	// ErrDimensionMismatch is returned when a vector has the wrong dimension.
	ErrDimensionMismatch = errors.New("index: dimension mismatch")

	// ErrCorruptIndex is returned when index.bin cannot be decoded.
	ErrCorruptIndex = errors.New("index: corrupt vector file")
)

// Document is one unit of corpus input.
type Document struct {
	Text   string `json:"text" toml:"text"`
	Source string `json:"source" toml:"source"`
}

// Chunk is an indexed document with its vector. Its identity is its position.
type Chunk struct {
	Text   string
	Source string
	Vector []float32
}

// RetrievedChunk is a query-time projection of a chunk. Lower scores are closer.
type RetrievedChunk struct {
	Text   string  `json:"text"`
	Score  float32 `json:"score"`
	Source string  `json:"source"`
}

// Index is an immutable flat vector index. It is safe for concurrent queries.
type Index struct {
	dim     int
	vectors []float32 // row-major, len = dim * len(texts)
	texts   []string
	sources []string
}

// New assembles an index from co-indexed vectors, texts and sources.
func New(vectors [][]float32, texts, sources []string) (*Index, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyCorpus
	}
	if len(vectors) != len(texts) || len(texts) != len(sources) {
		return nil, fmt.Errorf("%w: %d vectors, %d texts, %d sources",
			ErrIndexMismatch, len(vectors), len(texts), len(sources))
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length vector", ErrDimensionMismatch)
	}
	flat := make([]float32, 0, dim*len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dims, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		flat = append(flat, v...)
	}

	return &Index{
		dim:     dim,
		vectors: flat,
		texts:   slices.Clone(texts),
		sources: slices.Clone(sources),
	}, nil
}

// Len returns the number of chunks. Zero for the absent index.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.texts)
}

// Dimension returns the vector dimension. Zero for the absent index.
func (ix *Index) Dimension() int {
	if ix == nil {
		return 0
	}
	return ix.dim
}

// Chunk returns the chunk at position i.
func (ix *Index) Chunk(i int) (Chunk, bool) {
	if ix == nil || i < 0 || i >= len(ix.texts) {
		return Chunk{}, false
	}
	return Chunk{
		Text:   ix.texts[i],
		Source: ix.sources[i],
		Vector: slices.Clone(ix.row(i)),
	}, true
}

func (ix *Index) row(i int) []float32 {
	return ix.vectors[i*ix.dim : (i+1)*ix.dim]
}

// Query returns at most k chunks nearest to vec by squared L2 distance,
// nearest first. Ties keep index order. The absent index returns nothing.
func (ix *Index) Query(vec []float32, k int) ([]RetrievedChunk, error) {
	if ix == nil || k <= 0 {
		return []RetrievedChunk{}, nil
	}
	if len(vec) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", ErrDimensionMismatch, len(vec), ix.dim)
	}

	type hit struct {
		pos  int
		dist float32
	}
	n := len(ix.vectors) / ix.dim
	hits := make([]hit, n)
	for i := 0; i < n; i++ {
		hits[i] = hit{pos: i, dist: squaredL2(vec, ix.row(i))}
	}
	slices.SortStableFunc(hits, func(a, b hit) int {
		return cmp.Compare(a.dist, b.dist)
	})

	out := make([]RetrievedChunk, 0, min(k, n))
	for _, h := range hits {
		if len(out) == k {
			break
		}
		if h.pos < 0 || h.pos >= len(ix.texts) {
			continue
		}
		out = append(out, RetrievedChunk{
			Text:   ix.texts[h.pos],
			Score:  h.dist,
			Source: ix.sources[h.pos],
		})
	}
	return out, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
