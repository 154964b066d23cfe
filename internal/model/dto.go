package model

import (
	"time"

	"github.com/google/uuid"

	"lawspark-go/pkg/apperrors"
)

// GenerateEmbeddingsRequest 是 POST /embeddings/generate 的请求体。
type GenerateEmbeddingsRequest struct {
	DocumentID   string `json:"documentId" binding:"required"`
	ChunkSize    int    `json:"chunkSize"`
	ChunkOverlap *int   `json:"chunkOverlap"`
}

// EmbeddingResult 描述一次生成调用的结果。
type EmbeddingResult struct {
	DocumentID      uuid.UUID                   `json:"documentId"`
	Status          string                      `json:"status"`
	AlreadyEmbedded bool                        `json:"alreadyEmbedded"`
	ChunkCount      int                         `json:"chunkCount"`
	StoredChunks    int                         `json:"storedChunks"`
	Failures        []apperrors.PerChunkFailure `json:"failures"`
	Model           string                      `json:"model"`
	ChunkSize       int                         `json:"chunkSize"`
	ChunkOverlap    int                         `json:"chunkOverlap"`
}

// EmbeddingStatus 是 GET /embeddings/:documentId/status 的响应。
type EmbeddingStatus struct {
	DocumentID  uuid.UUID     `json:"documentId"`
	RecordCount int64         `json:"recordCount"`
	Job         *EmbeddingJob `json:"job"`
}

// SearchRequest 是相似度检索的参数。日期使用 YYYY-MM-DD，均为闭区间。
type SearchRequest struct {
	Query         string   `json:"query" binding:"required"`
	Limit         int      `json:"limit"`
	Threshold     *float64 `json:"threshold"`
	DocumentTypes []string `json:"documentTypes"`
	Categories    []string `json:"categories"`
	DateFrom      string   `json:"dateFrom"`
	DateTo        string   `json:"dateTo"`
}

// SearchResult 原样返回匹配行以及 embed + match 的耗时。
type SearchResult struct {
	Results    []MatchedChunk `json:"results"`
	Count      int            `json:"count"`
	DurationMs int64          `json:"durationMs"`
	Duration   time.Duration  `json:"-"`
}

// Answer 是回答生成的结果，token 数为字符数/4 的估算。
type Answer struct {
	Text             string `json:"answer"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"promptTokens"`
	CompletionTokens int    `json:"completionTokens"`
}

// ChatAskRequest 是 POST /chat/ask 的请求体。
type ChatAskRequest struct {
	Query         string   `json:"query" binding:"required"`
	Limit         int      `json:"limit"`
	Threshold     *float64 `json:"threshold"`
	DocumentTypes []string `json:"documentTypes"`
}

// ChatAnswer 是 POST /chat/ask 的响应。
type ChatAnswer struct {
	Answer
	Sources []Source `json:"sources"`
}

// CreateTextDocumentRequest 是 POST /documents/text 的请求体。
type CreateTextDocumentRequest struct {
	Title        string   `json:"title" binding:"required"`
	Content      string   `json:"content" binding:"required"`
	Description  string   `json:"description"`
	DocumentType string   `json:"documentType"`
	Jurisdiction string   `json:"jurisdiction"`
	Language     string   `json:"language"`
	Source       string   `json:"source"`
	Categories   []string `json:"categories"`
	DocumentDate string   `json:"documentDate"`
}

// ContractAnalysis 是 POST /documents/:id/analyze 的响应。
type ContractAnalysis struct {
	DocumentID uuid.UUID `json:"documentId"`
	Analysis   string    `json:"analysis"`
	Complexity string    `json:"complexity"`
	Domains    []string  `json:"legalDomains"`
	Model      string    `json:"model"`
}

// AdminStats 是 GET /admin/stats 的响应。
type AdminStats struct {
	Documents       int64            `json:"documents"`
	EmbeddingRows   int64            `json:"embeddingRows"`
	JobsByStatus    map[string]int64 `json:"jobsByStatus"`
	SearchesLogged  int64            `json:"searchesLogged"`
	AuditLogEntries int64            `json:"auditLogEntries"`
}

// Page 是分页列表的通用响应。
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}
