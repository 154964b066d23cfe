// Package embedding provides a client for the Gemini embedding endpoint.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"lawspark-go/internal/config"
	"lawspark-go/pkg/apperrors"
	"lawspark-go/pkg/log"
	"lawspark-go/pkg/metrics"
	"lawspark-go/pkg/throttle"
)

// ServiceName identifies the embedding endpoint in errors and metrics.
const ServiceName = "gemini-embedding"

// Client defines the interface for an embedding client.
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	// Model is recorded next to every stored vector.
	Model() string
}

type geminiClient struct {
	cfg     config.EmbeddingConfig
	client  *http.Client
	limiter *throttle.Limiter
	metrics *metrics.Metrics
}

// NewClient creates a Gemini embedding client. limiter and m may be nil.
func NewClient(cfg config.EmbeddingConfig, limiter *throttle.Limiter, m *metrics.Metrics) Client {
	return &geminiClient{
		cfg:     cfg,
		client:  &http.Client{},
		limiter: limiter,
		metrics: m,
	}
}

type part struct {
	Text string `json:"text"`
}

type embedRequest struct {
	Model   string `json:"model"`
	Content struct {
		Parts []part `json:"parts"`
	} `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func (c *geminiClient) Model() string {
	return c.cfg.Model
}

// CreateEmbedding calls models/{model}:embedContent and returns embedding.values.
func (c *geminiClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if c.cfg.APIKey == "" {
		return nil, &apperrors.ConfigurationError{Key: "GEMINI_API_KEY"}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reqBody embedRequest
	reqBody.Model = "models/" + c.cfg.Model
	reqBody.Content.Parts = []part{{Text: text}}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:embedContent?key=%s", c.cfg.BaseURL, c.cfg.Model, url.QueryEscape(c.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debugf("[EmbeddingClient] 调用 embedContent, model: %s, input_len: %d", c.cfg.Model, len(text))
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RemoteError(ServiceName, 0)
		return nil, apperrors.Remote(ServiceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Remote(ServiceName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.RemoteError(ServiceName, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests && c.limiter != nil {
			c.limiter.RecordRateLimit(retryAfter(resp.Header))
		}
		remoteErr := apperrors.FromHTTP(ServiceName, resp.StatusCode, body)
		log.Warnf("[EmbeddingClient] embedContent 返回 %d: %s", resp.StatusCode, remoteErr.Message)
		return nil, remoteErr
	}

	var out embedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &apperrors.RemoteServiceError{Service: ServiceName, StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	if len(out.Embedding.Values) == 0 {
		return nil, &apperrors.RemoteServiceError{Service: ServiceName, StatusCode: resp.StatusCode, Message: "response carried no embedding values"}
	}

	return out.Embedding.Values, nil
}

// retryAfter reads a Retry-After header given in seconds; zero means unknown.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
