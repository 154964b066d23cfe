package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawspark-go/internal/config"
	"lawspark-go/pkg/apperrors"
	"lawspark-go/pkg/throttle"
)

func testConfig(baseURL string) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "text-embedding-004",
	}
}

func TestCreateEmbedding_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/text-embedding-004:embedContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "models/text-embedding-004", body["model"])
		parts := body["content"].(map[string]any)["parts"].([]any)
		assert.Equal(t, "the tenant pays rent", parts[0].(map[string]any)["text"])

		_, _ = w.Write([]byte(`{"embedding":{"values":[0.1,0.2,0.3]}}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil, nil)
	vec, err := c.CreateEmbedding(context.Background(), "the tenant pays rent")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "text-embedding-004", c.Model())
}

func TestCreateEmbedding_MissingKey(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIKey = ""
	_, err := NewClient(cfg, nil, nil).CreateEmbedding(context.Background(), "x")

	var cfgErr *apperrors.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestCreateEmbedding_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded for embed requests","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	limiter := throttle.New(100, 10, time.Minute)
	_, err := NewClient(testConfig(srv.URL), limiter, nil).CreateEmbedding(context.Background(), "x")

	var remote *apperrors.RemoteServiceError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusTooManyRequests, remote.StatusCode)
	assert.Equal(t, "Quota exceeded for embed requests", remote.Message)
	assert.True(t, limiter.CoolingDown())
}

func TestCreateEmbedding_EmptyValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":{"values":[]}}`))
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL), nil, nil).CreateEmbedding(context.Background(), "x")
	assert.ErrorIs(t, err, apperrors.ErrRemoteService)
}

func TestCreateEmbedding_ServerErrorKeepsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL), nil, nil).CreateEmbedding(context.Background(), "x")

	var remote *apperrors.RemoteServiceError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusServiceUnavailable, remote.StatusCode)
	assert.Equal(t, "backend unavailable", remote.Message)
}
