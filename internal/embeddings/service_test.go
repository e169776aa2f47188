package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTEIServer(t *testing.T, handler func(t *testing.T, req teiRequest) (int, interface{})) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req teiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		status, body := handler(t, req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewService(t *testing.T) {
	_, err := NewService(Config{BaseURL: ""}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	svc, err := NewService(Config{BaseURL: "http://localhost:8080/", Model: "BAAI/bge-small-en-v1.5"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", svc.config.BaseURL)
}

func TestService_EmbedDocuments(t *testing.T) {
	srv := newTEIServer(t, func(t *testing.T, req teiRequest) (int, interface{}) {
		inputs, _ := req.Inputs.([]interface{})
		assert.Len(t, inputs, 3)
		assert.True(t, req.Truncate)
		out := make([][]float32, len(inputs))
		for i := range inputs {
			out[i] = []float32{float32(i), 1}
		}
		return http.StatusOK, out
	})

	svc, err := NewService(Config{BaseURL: srv.URL, Model: "test"}, nil)
	require.NoError(t, err)

	vecs, err := svc.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}, {2, 1}}, vecs)

	_, err = svc.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestService_EmbedQuery(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([][]float32{{0.5, 0.25}})
	}))
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL, Model: "test", APIKey: "k"}, nil)
	require.NoError(t, err)

	vec, err := svc.EmbedQuery(context.Background(), "exam schedule")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, vec)
	assert.Equal(t, "Bearer k", gotAuth)

	_, err = svc.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestService_Errors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		srv := newTEIServer(t, func(t *testing.T, _ teiRequest) (int, interface{}) {
			return http.StatusServiceUnavailable, map[string]string{"error": "model loading"}
		})
		svc, err := NewService(Config{BaseURL: srv.URL}, nil)
		require.NoError(t, err)

		_, err = svc.EmbedQuery(context.Background(), "hi")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmbeddingFailed))
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("vector count mismatch", func(t *testing.T) {
		srv := newTEIServer(t, func(t *testing.T, _ teiRequest) (int, interface{}) {
			return http.StatusOK, [][]float32{{1}}
		})
		svc, err := NewService(Config{BaseURL: srv.URL}, nil)
		require.NoError(t, err)

		_, err = svc.EmbedDocuments(context.Background(), []string{"a", "b"})
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
	})

	t.Run("unreachable server", func(t *testing.T) {
		svc, err := NewService(Config{BaseURL: "http://127.0.0.1:1"}, nil)
		require.NoError(t, err)
		_, err = svc.EmbedQuery(context.Background(), "hi")
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
	})
}
