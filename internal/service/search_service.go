package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"

	"lawspark-go/internal/config"
	"lawspark-go/internal/model"
	"lawspark-go/internal/repository"
	"lawspark-go/pkg/apperrors"
	"lawspark-go/pkg/embedding"
	"lawspark-go/pkg/log"
	"lawspark-go/pkg/metrics"
)

// MatchServiceName identifies the database match function in errors.
const MatchServiceName = "match_document_embeddings"

const (
	maxSearchLimit = 100
	dateLayout     = "2006-01-02"
)

// SearchService 定义了检索操作的接口。
type SearchService interface {
	// Search 向量化查询并返回超过阈值的分块。非管理员只能检索到自己文档的分块。
	Search(ctx context.Context, req model.SearchRequest, requester Requester) (*model.SearchResult, error)
	// KeywordSearch 在 Elasticsearch 元数据索引上做关键词检索。
	KeywordSearch(ctx context.Context, query string, userID uuid.UUID, size int) ([]model.KeywordHit, error)
}

type searchService struct {
	embedder   embedding.Client
	embeddings repository.EmbeddingRepository
	searchLogs repository.SearchLogRepository
	indexer    MetadataIndexer
	cfg        config.SearchConfig
	metrics    *metrics.Metrics
	// logged 在检索日志写入结束后收到通知，仅测试使用。
	logged func()
}

// NewSearchService 创建一个新的 SearchService 实例。indexer 与 m 可以为 nil。
func NewSearchService(
	embedder embedding.Client,
	embeddings repository.EmbeddingRepository,
	searchLogs repository.SearchLogRepository,
	indexer MetadataIndexer,
	cfg config.SearchConfig,
	m *metrics.Metrics,
) SearchService {
	return &searchService{
		embedder:   embedder,
		embeddings: embeddings,
		searchLogs: searchLogs,
		indexer:    indexer,
		cfg:        cfg,
		metrics:    m,
	}
}

type searchParams struct {
	limit     int
	threshold float64
	filter    repository.MatchFilter
}

func (s *searchService) resolve(req model.SearchRequest, requester Requester) (searchParams, error) {
	p := searchParams{limit: req.Limit}
	if !requester.IsAdmin {
		owner := requester.UserID
		p.filter.UserID = &owner
	}
	if p.limit == 0 {
		p.limit = s.cfg.DefaultLimit
	}
	if p.limit == 0 {
		p.limit = 10
	}
	if p.limit < 0 || p.limit > maxSearchLimit {
		return p, apperrors.Invalidf("limit must be between 1 and %d", maxSearchLimit)
	}

	p.threshold = s.cfg.DefaultThreshold
	if p.threshold == 0 {
		p.threshold = 0.7
	}
	if req.Threshold != nil {
		p.threshold = *req.Threshold
	}
	if p.threshold < -1 || p.threshold > 1 {
		return p, apperrors.Invalidf("threshold must be between -1 and 1")
	}

	p.filter.DocumentTypes = req.DocumentTypes
	p.filter.Categories = req.Categories
	if req.DateFrom != "" {
		t, err := time.Parse(dateLayout, req.DateFrom)
		if err != nil {
			return p, apperrors.Invalidf("dateFrom must be YYYY-MM-DD")
		}
		p.filter.DateFrom = &t
	}
	if req.DateTo != "" {
		t, err := time.Parse(dateLayout, req.DateTo)
		if err != nil {
			return p, apperrors.Invalidf("dateTo must be YYYY-MM-DD")
		}
		p.filter.DateTo = &t
	}
	return p, nil
}

// Search 执行 embed + match，并异步写入检索日志。
func (s *searchService) Search(ctx context.Context, req model.SearchRequest, requester Requester) (*model.SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, apperrors.Invalidf("query must not be empty")
	}
	params, err := s.resolve(req, requester)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	// 1. 向量化查询
	vec, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		log.Errorf("[SearchService] 查询向量化失败: %v", err)
		return nil, err
	}
	queryVec := pgvector.NewVector(vec)

	// 2. 调用 match 函数
	rows, err := s.embeddings.Match(ctx, queryVec, params.threshold, params.limit, params.filter)
	if err != nil {
		log.Errorf("[SearchService] match_document_embeddings 调用失败: %v", err)
		s.metrics.RemoteError(MatchServiceName, 0)
		return nil, apperrors.Remote(MatchServiceName, err)
	}
	if rows == nil {
		rows = []model.MatchedChunk{}
	}
	duration := time.Since(start)

	s.metrics.ObserveSearch(duration, len(rows))
	log.Infof("[SearchService] 检索完成, results=%d, duration=%s", len(rows), duration)

	// 3. fire-and-forget 写检索日志
	var userID *uuid.UUID
	if requester.UserID != uuid.Nil {
		id := requester.UserID
		userID = &id
	}
	entry := buildSearchLog(query, queryVec, params, req, rows, duration, userID)
	go s.writeLog(context.WithoutCancel(ctx), entry)

	return &model.SearchResult{
		Results:    rows,
		Count:      len(rows),
		DurationMs: duration.Milliseconds(),
		Duration:   duration,
	}, nil
}

func buildSearchLog(query string, vec pgvector.Vector, p searchParams, req model.SearchRequest, rows []model.MatchedChunk, d time.Duration, userID *uuid.UUID) *model.VectorSearchLog {
	raw, _ := json.Marshal(map[string]interface{}{
		"limit":         p.limit,
		"threshold":     p.threshold,
		"documentTypes": req.DocumentTypes,
		"categories":    req.Categories,
		"dateFrom":      req.DateFrom,
		"dateTo":        req.DateTo,
	})
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID.String()
	}
	return &model.VectorSearchLog{
		UserID:         userID,
		Query:          query,
		QueryEmbedding: vec,
		Parameters:     datatypes.JSON(raw),
		ResultIDs:      ids,
		ResultCount:    len(rows),
		DurationMs:     d.Milliseconds(),
	}
}

func (s *searchService) writeLog(ctx context.Context, entry *model.VectorSearchLog) {
	defer func() {
		if s.logged != nil {
			s.logged()
		}
	}()
	if s.searchLogs == nil {
		return
	}
	if err := s.searchLogs.Create(ctx, entry); err != nil {
		log.Warnf("[SearchService] 写入 vector_search_logs 失败: %v", err)
	}
}

func (s *searchService) KeywordSearch(ctx context.Context, query string, userID uuid.UUID, size int) ([]model.KeywordHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.Invalidf("q must not be empty")
	}
	if s.indexer == nil {
		return nil, &apperrors.ConfigurationError{Key: "elasticsearch"}
	}
	if size <= 0 || size > maxSearchLimit {
		size = 10
	}
	hits, err := s.indexer.SearchMetadata(ctx, query, userID.String(), size)
	if err != nil {
		return nil, apperrors.Remote("elasticsearch", err)
	}
	return hits, nil
}
