// Package apperrors 定义了应用统一的错误分类以及到 HTTP 状态码的映射。
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrRemoteService = errors.New("remote service error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
)

// ConfigurationError 表示缺少必需的凭证或配置项，属于致命错误，不重试。
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s is not set", e.Key)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// RemoteServiceError 表示外部 API 返回了非成功状态。
// Message 为远端错误信息原文（若可获取）。
type RemoteServiceError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *RemoteServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s returned %d: %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Service, e.Message)
}

func (e *RemoteServiceError) Unwrap() error { return ErrRemoteService }

// Remote wraps a transport-level failure (no HTTP status) as a RemoteServiceError.
func Remote(service string, err error) *RemoteServiceError {
	return &RemoteServiceError{Service: service, Message: err.Error()}
}

// FromHTTP builds a RemoteServiceError from a non-2xx response body. Google
// style payloads carry the reason in error.message; anything else is kept raw.
func FromHTTP(service string, statusCode int, body []byte) *RemoteServiceError {
	msg := gjson.GetBytes(body, "error.message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return &RemoteServiceError{Service: service, StatusCode: statusCode, Message: msg}
}

// PerChunkFailure 记录单个分块向量化失败，不会中止同批次的其他分块。
type PerChunkFailure struct {
	ChunkIndex int    `json:"chunkIndex"`
	Reason     string `json:"reason"`
}

func (f PerChunkFailure) Error() string {
	return fmt.Sprintf("chunk %d: %s", f.ChunkIndex, f.Reason)
}

// NotFoundf 构造一个包装了 ErrNotFound 的错误。
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflictf 构造一个包装了 ErrConflict 的错误。
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Invalidf 构造一个包装了 ErrInvalidInput 的错误。
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// HTTPStatusCode 将错误映射为 HTTP 状态码。
// 远端服务错误统一映射为 502，但保留远端 429 以便调用方区分限流。
func HTTPStatusCode(err error) int {
	var remote *RemoteServiceError
	if errors.As(err, &remote) {
		if remote.StatusCode == http.StatusTooManyRequests {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConfiguration):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
