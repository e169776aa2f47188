package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/campusd/internal/config"
	"github.com/fyrsmithlabs/campusd/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = 18084
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Embeddings.Provider = "hash"
	cfg.Embeddings.Dimension = 16
	cfg.Index.Dir = t.TempDir()
	cfg.Study.UploadDir = t.TempDir()
	cfg.Observability.LogLevel = "error"
	return cfg
}

func TestOpenStores_InMemory(t *testing.T) {
	s, err := openStores(context.Background(), testConfig(t), logging.NewNop())
	require.NoError(t, err)
	defer s.Close()
	assert.NotNil(t, s.campus)
	assert.NotNil(t, s.documents)
	assert.Nil(t, s.db)
}

func TestMainIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, testConfig(t))
	}()

	// Wait for server to start
	time.Sleep(200 * time.Millisecond)

	resp, err := http.Get("http://localhost:18084/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shutdown in time")
	}
}
