package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyrsmithlabs/campusd/internal/embeddings"
	"github.com/fyrsmithlabs/campusd/internal/index"
	"github.com/fyrsmithlabs/campusd/internal/logging"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

var corpus = []index.Document{
	{Text: "FAQ: What are library hours? Answer: 9am-9pm.", Source: "faq_0"},
	{Text: "FAQ: Where can I pay fees? Answer: At the accounts office in Block A.", Source: "faq_1"},
	{Text: "Event: Hackathon Description: 24 hour coding contest in the main hall.", Source: "event_0"},
}

// countingEmbedder wraps an embedder and counts query embeddings.
type countingEmbedder struct {
	embeddings.Embedder
	queries atomic.Int32
	err     error
}

func (c *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	c.queries.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.Embedder.EmbedQuery(ctx, text)
}

func TestEngine_RetrieveAbsent(t *testing.T) {
	emb := &countingEmbedder{Embedder: embeddings.NewHashProvider(64)}
	e := NewEngine(index.NewStore(nil), emb)

	got, err := e.Retrieve(context.Background(), "library hours", 3)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, emb.queries.Load(), "absent index must not embed")
	assert.True(t, e.Stats().Absent)
}

func TestEngine_RebuildAndRetrieve(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	emb := &countingEmbedder{Embedder: embeddings.NewHashProvider(64)}
	e := NewEngine(index.NewStore(nil), emb, WithIndexDir(dir), WithBatchSize(2))

	ix, err := e.Rebuild(ctx, corpus)
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Len())
	assert.FileExists(t, filepath.Join(dir, index.VectorsFile))

	got, err := e.Retrieve(ctx, corpus[0].Text, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "faq_0", got[0].Source)
	assert.InDelta(t, 0, got[0].Score, 1e-6)
	assert.Equal(t, int32(1), emb.queries.Load())

	stats := e.Stats()
	assert.False(t, stats.Absent)
	assert.Equal(t, 3, stats.Chunks)
	assert.Equal(t, 64, stats.Dimension)
	assert.Equal(t, dir, stats.Dir)
}

func TestEngine_RebuildFailureKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(index.NewStore(nil), embeddings.NewHashProvider(16))
	first, err := e.Rebuild(ctx, corpus)
	require.NoError(t, err)

	_, err = e.Rebuild(ctx, nil)
	assert.ErrorIs(t, err, index.ErrEmptyCorpus)
	assert.Equal(t, first.Len(), e.Stats().Chunks)
}

func TestEngine_RetrieveResultLabels(t *testing.T) {
	ctx := context.Background()
	count := func(result string) float64 {
		return testutil.ToFloat64(queriesTotal.WithLabelValues(result))
	}

	e := NewEngine(index.NewStore(nil), embeddings.NewHashProvider(16))
	absent, empty := count("absent"), count("empty")
	_, err := e.Retrieve(ctx, "library", 3)
	require.NoError(t, err)
	assert.Equal(t, absent+1, count("absent"))
	assert.Equal(t, empty, count("empty"))

	_, err = e.Rebuild(ctx, corpus)
	require.NoError(t, err)

	absent, empty, hit := count("absent"), count("empty"), count("hit")
	got, err := e.Retrieve(ctx, "library", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, absent, count("absent"), "a loaded index is not absent")
	assert.Equal(t, empty+1, count("empty"))

	_, err = e.Retrieve(ctx, "library", 2)
	require.NoError(t, err)
	assert.Equal(t, hit+1, count("hit"))
}

func TestEngine_RetrieveEmbeddingError(t *testing.T) {
	ctx := context.Background()
	emb := &countingEmbedder{Embedder: embeddings.NewHashProvider(16)}
	e := NewEngine(index.NewStore(nil), emb)
	_, err := e.Rebuild(ctx, corpus)
	require.NoError(t, err)

	emb.err = errors.New("provider down")
	_, err = e.Retrieve(ctx, "anything", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
}

func TestEngine_Reload(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a directory", func(t *testing.T) {
		e := NewEngine(index.NewStore(nil), embeddings.NewHashProvider(16))
		_, err := e.Reload(ctx)
		assert.ErrorIs(t, err, ErrNoIndexDir)
	})

	t.Run("picks up artifacts built elsewhere", func(t *testing.T) {
		dir := t.TempDir()
		h := embeddings.NewHashProvider(16)
		_, err := index.BuildAndSave(ctx, h, corpus, 0, dir)
		require.NoError(t, err)

		e := NewEngine(index.NewStore(nil), h, WithIndexDir(dir))
		ix, err := e.Reload(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, ix.Len())
		assert.False(t, e.Stats().Absent)
	})

	t.Run("failed load keeps the previous index", func(t *testing.T) {
		dir := t.TempDir()
		h := embeddings.NewHashProvider(16)
		tl := logging.NewTestLogger()
		e := NewEngine(index.NewStore(nil), h, WithIndexDir(dir), WithLogger(tl.Logger))
		_, err := e.Rebuild(ctx, corpus)
		require.NoError(t, err)

		require.NoError(t, os.Remove(filepath.Join(dir, index.TextsFile)))
		_, err = e.Reload(ctx)
		assert.ErrorIs(t, err, index.ErrIncompleteIndex)
		assert.Equal(t, 3, e.Stats().Chunks)
		tl.AssertLogged(t, zapcore.WarnLevel, "keeping current index")
	})

	t.Run("missing index becomes absent", func(t *testing.T) {
		dir := t.TempDir()
		h := embeddings.NewHashProvider(16)
		e := NewEngine(index.NewStore(nil), h, WithIndexDir(dir))
		_, err := e.Rebuild(ctx, corpus)
		require.NoError(t, err)

		for _, name := range []string{index.VectorsFile, index.TextsFile, index.SourcesFile} {
			require.NoError(t, os.Remove(filepath.Join(dir, name)))
		}
		ix, err := e.Reload(ctx)
		require.NoError(t, err)
		assert.Nil(t, ix)
		assert.True(t, e.Stats().Absent)
	})
}

type fakeReloader struct {
	calls atomic.Int32
}

func (f *fakeReloader) Reload(context.Context) (*index.Index, error) {
	f.calls.Add(1)
	return nil, nil
}

func TestWatcher(t *testing.T) {
	t.Run("requires a directory", func(t *testing.T) {
		_, err := NewWatcher("", &fakeReloader{}, 0, nil)
		assert.ErrorIs(t, err, ErrWatcherFailed)
	})

	t.Run("debounces artifact writes into one reload", func(t *testing.T) {
		dir := t.TempDir()
		r := &fakeReloader{}
		w, err := NewWatcher(dir, r, 250*time.Millisecond, nil)
		require.NoError(t, err)
		require.NoError(t, w.Start(context.Background()))
		defer w.Stop()

		for _, name := range []string{index.TextsFile, index.SourcesFile, index.VectorsFile} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
		}

		select {
		case err := <-w.Reloaded():
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not reload")
		}
		assert.Equal(t, int32(1), r.calls.Load())
	})

	t.Run("ignores unrelated files", func(t *testing.T) {
		dir := t.TempDir()
		r := &fakeReloader{}
		w, err := NewWatcher(dir, r, 20*time.Millisecond, nil)
		require.NoError(t, err)
		require.NoError(t, w.Start(context.Background()))
		defer w.Stop()

		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o644))
		select {
		case <-w.Reloaded():
			t.Fatal("unexpected reload")
		case <-time.After(200 * time.Millisecond):
		}
		assert.Zero(t, r.calls.Load())
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		w, err := NewWatcher(t.TempDir(), &fakeReloader{}, 0, nil)
		require.NoError(t, err)
		require.NoError(t, w.Start(context.Background()))
		w.Stop()
		w.Stop()
	})
}

func TestIsArtifact(t *testing.T) {
	assert.True(t, isArtifact("/x/index.bin"))
	assert.True(t, isArtifact("texts.txt"))
	assert.False(t, isArtifact("/x/index.bin.tmp.123"))
	assert.False(t, isArtifact("/x/readme"))
}
