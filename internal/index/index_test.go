package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/campusd/internal/embeddings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := New(
		[][]float32{{0, 0}, {1, 0}, {0, 2}, {3, 3}},
		[]string{"origin", "east", "north", "far"},
		[]string{"s0", "s1", "s2", "s3"},
	)
	require.NoError(t, err)
	return ix
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		vectors [][]float32
		texts   []string
		sources []string
		wantErr error
	}{
		{"empty", nil, nil, nil, ErrEmptyCorpus},
		{"length mismatch", [][]float32{{1}}, []string{"a", "b"}, []string{"a"}, ErrIndexMismatch},
		{"ragged vectors", [][]float32{{1, 2}, {1}}, []string{"a", "b"}, []string{"a", "b"}, ErrDimensionMismatch},
		{"zero dim", [][]float32{{}}, []string{"a"}, []string{"a"}, ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.vectors, tt.texts, tt.sources)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIndex_Query(t *testing.T) {
	ix := sampleIndex(t)

	t.Run("nearest first", func(t *testing.T) {
		got, err := ix.Query([]float32{0.9, 0.1}, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "east", got[0].Text)
		assert.Equal(t, "s1", got[0].Source)
		assert.InDelta(t, 0.02, got[0].Score, 1e-6)
		assert.Equal(t, "origin", got[1].Text)
	})

	t.Run("at most min(k, n) in non-decreasing order", func(t *testing.T) {
		for _, k := range []int{0, 1, 3, 4, 10} {
			got, err := ix.Query([]float32{1, 1}, k)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(got), min(k, ix.Len()))
			for i := 1; i < len(got); i++ {
				assert.LessOrEqual(t, got[i-1].Score, got[i].Score)
			}
		}
	})

	t.Run("exact match scores zero", func(t *testing.T) {
		got, err := ix.Query([]float32{0, 2}, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "north", got[0].Text)
		assert.Zero(t, got[0].Score)
	})

	t.Run("ties keep position order", func(t *testing.T) {
		tied, err := New([][]float32{{1}, {-1}, {1}}, []string{"a", "b", "c"}, []string{"1", "2", "3"})
		require.NoError(t, err)
		got, err := tied.Query([]float32{0}, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].Text, got[1].Text, got[2].Text})
	})

	t.Run("negative k", func(t *testing.T) {
		got, err := ix.Query([]float32{0, 0}, -1)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := ix.Query([]float32{1, 2, 3}, 1)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func TestIndex_Absent(t *testing.T) {
	var ix *Index

	got, err := ix.Query([]float32{1, 2}, 3)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, ix.Len())
	assert.Zero(t, ix.Dimension())
	_, ok := ix.Chunk(0)
	assert.False(t, ok)
	assert.ErrorIs(t, ix.Save(t.TempDir()), ErrEmptyCorpus)
}

func TestIndex_Chunk(t *testing.T) {
	ix := sampleIndex(t)
	c, ok := ix.Chunk(2)
	require.True(t, ok)
	assert.Equal(t, Chunk{Text: "north", Source: "s2", Vector: []float32{0, 2}}, c)

	c.Vector[0] = 99
	again, _ := ix.Chunk(2)
	assert.Equal(t, float32(0), again.Vector[0])

	_, ok = ix.Chunk(4)
	assert.False(t, ok)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	ix, err := New(
		[][]float32{{0.5, -1.25, 3}, {2, 2, 2}},
		[]string{"FAQ: Where is the library?\nAnswer: Block C.", `C:\path with \n literal`},
		[]string{"faq_0", "handbook"},
	)
	require.NoError(t, err)
	require.NoError(t, ix.Save(dir))

	for _, name := range []string{VectorsFile, TextsFile, SourcesFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	texts, err := os.ReadFile(filepath.Join(dir, TextsFile))
	require.NoError(t, err)
	assert.Equal(t, 2, len(splitLines(string(texts))), "one line per chunk")

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 2, loaded.Len())
	assert.Equal(t, 3, loaded.Dimension())

	got, err := loaded.Query([]float32{2, 2, 2}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, `C:\path with \n literal`, got[0].Text)
	assert.Equal(t, "handbook", got[0].Source)
	assert.Zero(t, got[0].Score)

	first, _ := loaded.Chunk(0)
	assert.Equal(t, "FAQ: Where is the library?\nAnswer: Block C.", first.Text)
	assert.Equal(t, []float32{0.5, -1.25, 3}, first.Vector)
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

func TestLoad_Absent(t *testing.T) {
	ix, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, ix)

	got, err := ix.Query([]float32{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoad_Failures(t *testing.T) {
	saved := func(t *testing.T) string {
		dir := t.TempDir()
		require.NoError(t, sampleIndex(t).Save(dir))
		return dir
	}

	t.Run("missing texts", func(t *testing.T) {
		dir := saved(t)
		require.NoError(t, os.Remove(filepath.Join(dir, TextsFile)))
		_, err := Load(dir)
		assert.ErrorIs(t, err, ErrIncompleteIndex)
	})

	t.Run("missing sources", func(t *testing.T) {
		dir := saved(t)
		require.NoError(t, os.Remove(filepath.Join(dir, SourcesFile)))
		_, err := Load(dir)
		assert.ErrorIs(t, err, ErrIncompleteIndex)
	})

	t.Run("length mismatch", func(t *testing.T) {
		dir := saved(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, SourcesFile), []byte("only\n"), 0o644))
		_, err := Load(dir)
		assert.ErrorIs(t, err, ErrIndexMismatch)
	})

	t.Run("bad magic", func(t *testing.T) {
		dir := saved(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, VectorsFile), []byte("NOPE0000000000000000"), 0o644))
		_, err := Load(dir)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("truncated body", func(t *testing.T) {
		dir := saved(t)
		path := filepath.Join(dir, VectorsFile)
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, raw[:len(raw)-3], 0o644))
		_, err = Load(dir)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("short header", func(t *testing.T) {
		dir := saved(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, VectorsFile), []byte("CIDX"), 0o644))
		_, err := Load(dir)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, sampleIndex(t).Save(dir))
	require.NoError(t, sampleIndex(t).Save(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestEscapeRoundTrip(t *testing.T) {
	for _, s := range []string{"", "plain", "a\nb", "a\r\nb", `back\slash`, `\n literal`, "trailing\\"} {
		assert.Equal(t, s, unescapeLine(lineEscaper.Replace(s)), "input %q", s)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model offline")
}

func (failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("model offline")
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	h := embeddings.NewHashProvider(32)

	t.Run("empty corpus", func(t *testing.T) {
		_, err := Build(ctx, h, nil, 0)
		assert.ErrorIs(t, err, ErrEmptyCorpus)
	})

	t.Run("embedder failure", func(t *testing.T) {
		_, err := Build(ctx, failingEmbedder{}, []Document{{Text: "x", Source: "y"}}, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model offline")
	})

	t.Run("build save load query", func(t *testing.T) {
		docs := []Document{
			{Text: "FAQ: What are library hours? Answer: 9am-9pm.", Source: "faq_0"},
			{Text: "Event: Hackathon Description: 24 hour coding contest.", Source: "event_0"},
			{Text: "The shuttle leaves the main gate every 30 minutes.", Source: "transport"},
		}
		dir := t.TempDir()
		built, err := BuildAndSave(ctx, h, docs, 2, dir)
		require.NoError(t, err)
		assert.Equal(t, 3, built.Len())
		assert.Equal(t, 32, built.Dimension())

		loaded, err := Load(dir)
		require.NoError(t, err)

		q, err := h.EmbedQuery(ctx, docs[2].Text)
		require.NoError(t, err)
		got, err := loaded.Query(q, 3)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Equal(t, "transport", got[0].Source)
		assert.InDelta(t, 0, got[0].Score, 1e-6)
	})
}

func TestStore(t *testing.T) {
	s := NewStore(nil)
	assert.Nil(t, s.Current())

	a := sampleIndex(t)
	assert.Nil(t, s.Swap(a))
	assert.Same(t, a, s.Current())

	b := sampleIndex(t)
	assert.Same(t, a, s.Swap(b))
	assert.Same(t, b, s.Current())

	t.Run("concurrent readers and swaps", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					_, _ = s.Current().Query([]float32{0, 0}, 2)
				}
			}()
			go func() {
				defer wg.Done()
				s.Swap(sampleIndex(t))
			}()
		}
		wg.Wait()
		assert.NotNil(t, s.Current())
	})
}
