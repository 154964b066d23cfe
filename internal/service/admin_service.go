package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"lawspark-go/internal/model"
	"lawspark-go/internal/repository"
	"lawspark-go/pkg/apperrors"
)

// AdminService 接口定义了所有管理员相关的业务操作。
type AdminService interface {
	AuditLogs(ctx context.Context, action string, page, size int) (*model.Page[model.AuditLog], error)
	SearchLogs(ctx context.Context, page, size int) (*model.Page[model.VectorSearchLog], error)
	EmbeddingJobs(ctx context.Context, status string, page, size int) (*model.Page[model.EmbeddingJob], error)
	// Regenerate 删除文档已有的向量并用新的分块参数重新生成。
	Regenerate(ctx context.Context, admin uuid.UUID, params GenerateParams) (*model.EmbeddingResult, error)
	Stats(ctx context.Context) (*model.AdminStats, error)
}

type adminService struct {
	docs       repository.DocumentRepository
	records    repository.EmbeddingRepository
	jobs       repository.EmbeddingJobRepository
	auditLogs  repository.AuditLogRepository
	searchLogs repository.SearchLogRepository
	embeddings EmbeddingService
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(
	docs repository.DocumentRepository,
	records repository.EmbeddingRepository,
	jobs repository.EmbeddingJobRepository,
	auditLogs repository.AuditLogRepository,
	searchLogs repository.SearchLogRepository,
	embeddings EmbeddingService,
) AdminService {
	return &adminService{
		docs:       docs,
		records:    records,
		jobs:       jobs,
		auditLogs:  auditLogs,
		searchLogs: searchLogs,
		embeddings: embeddings,
	}
}

func (s *adminService) AuditLogs(ctx context.Context, action string, page, size int) (*model.Page[model.AuditLog], error) {
	page, size = normalizePage(page, size)
	items, total, err := s.auditLogs.List(ctx, action, page, size)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.AuditLog{}
	}
	return &model.Page[model.AuditLog]{Items: items, Total: total, Page: page, Size: size}, nil
}

func (s *adminService) SearchLogs(ctx context.Context, page, size int) (*model.Page[model.VectorSearchLog], error) {
	page, size = normalizePage(page, size)
	items, total, err := s.searchLogs.List(ctx, page, size)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.VectorSearchLog{}
	}
	return &model.Page[model.VectorSearchLog]{Items: items, Total: total, Page: page, Size: size}, nil
}

func (s *adminService) EmbeddingJobs(ctx context.Context, status string, page, size int) (*model.Page[model.EmbeddingJob], error) {
	switch status {
	case "", model.JobPending, model.JobPartial, model.JobComplete, model.JobFailed:
	default:
		return nil, apperrors.Invalidf("unknown job status %q", status)
	}
	page, size = normalizePage(page, size)
	items, total, err := s.jobs.List(ctx, status, page, size)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.EmbeddingJob{}
	}
	return &model.Page[model.EmbeddingJob]{Items: items, Total: total, Page: page, Size: size}, nil
}

func (s *adminService) Regenerate(ctx context.Context, admin uuid.UUID, params GenerateParams) (*model.EmbeddingResult, error) {
	params.RequestedBy = &admin
	return s.embeddings.Regenerate(ctx, params)
}

func (s *adminService) Stats(ctx context.Context) (*model.AdminStats, error) {
	var stats model.AdminStats
	var err error
	if stats.Documents, err = s.docs.Count(ctx); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if stats.EmbeddingRows, err = s.records.CountAll(ctx); err != nil {
		return nil, fmt.Errorf("count embeddings: %w", err)
	}
	if stats.JobsByStatus, err = s.jobs.CountByStatus(ctx); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	if stats.SearchesLogged, err = s.searchLogs.Count(ctx); err != nil {
		return nil, fmt.Errorf("count search logs: %w", err)
	}
	if stats.AuditLogEntries, err = s.auditLogs.Count(ctx); err != nil {
		return nil, fmt.Errorf("count audit logs: %w", err)
	}
	return &stats, nil
}
