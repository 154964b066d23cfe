// Package llm provides a client for the Gemini text generation endpoints.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"lawspark-go/internal/config"
	"lawspark-go/pkg/apperrors"
	"lawspark-go/pkg/log"
	"lawspark-go/pkg/metrics"
)

// ServiceName identifies the generation endpoint in errors and metrics.
const ServiceName = "gemini-generate"

const (
	DefaultTemperature     = 0.2
	DefaultMaxOutputTokens = 1024
)

// MessageWriter defines an interface for writing WebSocket messages.
// This allows both a standard websocket.Conn and test doubles to be used.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Client defines the interface for an LLM client.
type Client interface {
	// Generate 一次性生成完整回答。
	Generate(ctx context.Context, prompt string, gen *GenerationParams) (string, error)
	// StreamGenerate 以 SSE 方式生成，每个增量以 {"chunk": "..."} 写入 writer，返回完整文本。
	StreamGenerate(ctx context.Context, prompt string, gen *GenerationParams, writer MessageWriter) (string, error)
	Model() string
}

// GenerationParams 控制生成行为，nil 字段使用配置中的默认值。
type GenerationParams struct {
	Temperature     *float64
	MaxOutputTokens *int
}

type geminiClient struct {
	cfg     config.LLMConfig
	client  *http.Client
	metrics *metrics.Metrics
}

// NewClient creates a Gemini generation client. m may be nil.
func NewClient(cfg config.LLMConfig, m *metrics.Metrics) Client {
	return &geminiClient{
		cfg:     cfg,
		client:  &http.Client{},
		metrics: m,
	}
}

type textPart struct {
	Text string `json:"text"`
}

type content struct {
	Role  string     `json:"role"`
	Parts []textPart `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

func (c *geminiClient) Model() string {
	return c.cfg.Model
}

func (c *geminiClient) buildRequest(prompt string, gen *GenerationParams) generateRequest {
	gc := generationConfig{
		Temperature:     c.cfg.Generation.Temperature,
		MaxOutputTokens: c.cfg.Generation.MaxOutputTokens,
	}
	if gc.Temperature == 0 {
		gc.Temperature = DefaultTemperature
	}
	if gc.MaxOutputTokens == 0 {
		gc.MaxOutputTokens = DefaultMaxOutputTokens
	}
	// 传参优先生效
	if gen != nil {
		if gen.Temperature != nil {
			gc.Temperature = *gen.Temperature
		}
		if gen.MaxOutputTokens != nil {
			gc.MaxOutputTokens = *gen.MaxOutputTokens
		}
	}
	return generateRequest{
		Contents:         []content{{Role: "user", Parts: []textPart{{Text: prompt}}}},
		GenerationConfig: gc,
	}
}

func (c *geminiClient) post(ctx context.Context, method, query, prompt string, gen *GenerationParams) (*http.Response, error) {
	if c.cfg.APIKey == "" {
		return nil, &apperrors.ConfigurationError{Key: "GEMINI_API_KEY"}
	}

	reqBytes, err := json.Marshal(c.buildRequest(prompt, gen))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:%s?%skey=%s", c.cfg.BaseURL, c.cfg.Model, method, query, url.QueryEscape(c.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RemoteError(ServiceName, 0)
		return nil, apperrors.Remote(ServiceName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		c.metrics.RemoteError(ServiceName, resp.StatusCode)
		remoteErr := apperrors.FromHTTP(ServiceName, resp.StatusCode, body)
		log.Warnf("[LLMClient] %s 返回 %d: %s", method, resp.StatusCode, remoteErr.Message)
		return nil, remoteErr
	}
	return resp, nil
}

// Generate calls models/{model}:generateContent.
func (c *geminiClient) Generate(ctx context.Context, prompt string, gen *GenerationParams) (string, error) {
	resp, err := c.post(ctx, "generateContent", "", prompt, gen)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Remote(ServiceName, err)
	}

	text := candidateText(body)
	if text == "" {
		reason := gjson.GetBytes(body, "candidates.0.finishReason").String()
		if reason == "" {
			reason = gjson.GetBytes(body, "promptFeedback.blockReason").String()
		}
		msg := "response carried no candidate text"
		if reason != "" {
			msg += " (" + reason + ")"
		}
		return "", &apperrors.RemoteServiceError{Service: ServiceName, StatusCode: resp.StatusCode, Message: msg}
	}
	return text, nil
}

// StreamGenerate calls models/{model}:streamGenerateContent?alt=sse.
func (c *geminiClient) StreamGenerate(ctx context.Context, prompt string, gen *GenerationParams, writer MessageWriter) (string, error) {
	resp, err := c.post(ctx, "streamGenerateContent", "alt=sse&", prompt, gen)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if text := candidateText([]byte(data)); text != "" {
				full.WriteString(text)
				frame, _ := json.Marshal(map[string]string{"chunk": text})
				if werr := writer.WriteMessage(websocket.TextMessage, frame); werr != nil {
					return full.String(), fmt.Errorf("failed to write message to websocket: %w", werr)
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return full.String(), apperrors.Remote(ServiceName, err)
		}
	}

	if full.Len() == 0 {
		return "", &apperrors.RemoteServiceError{Service: ServiceName, StatusCode: resp.StatusCode, Message: "stream carried no candidate text"}
	}
	return full.String(), nil
}

// candidateText joins candidates[0].content.parts[].text.
func candidateText(body []byte) string {
	var b strings.Builder
	for _, p := range gjson.GetBytes(body, "candidates.0.content.parts.#.text").Array() {
		b.WriteString(p.String())
	}
	return b.String()
}
