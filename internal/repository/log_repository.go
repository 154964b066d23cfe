package repository

import (
	"context"

	"gorm.io/gorm"

	"lawspark-go/internal/model"
)

// AuditLogRepository 追加与分页读取 audit_logs。
type AuditLogRepository interface {
	Create(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, action string, page, size int) ([]model.AuditLog, int64, error)
	Count(ctx context.Context) (int64, error)
}

// SearchLogRepository 追加与分页读取 vector_search_logs。
type SearchLogRepository interface {
	Create(ctx context.Context, entry *model.VectorSearchLog) error
	List(ctx context.Context, page, size int) ([]model.VectorSearchLog, int64, error)
	Count(ctx context.Context) (int64, error)
}

type auditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditLogRepository) List(ctx context.Context, action string, page, size int) ([]model.AuditLog, int64, error) {
	var (
		entries []model.AuditLog
		total   int64
	)
	q := r.db.WithContext(ctx).Model(&model.AuditLog{})
	if action != "" {
		q = q.Where("action = ?", action)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Offset((page - 1) * size).Limit(size).Find(&entries).Error
	return entries, total, err
}

func (r *auditLogRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.AuditLog{}).Count(&n).Error
	return n, err
}

type searchLogRepository struct {
	db *gorm.DB
}

func NewSearchLogRepository(db *gorm.DB) SearchLogRepository {
	return &searchLogRepository{db: db}
}

func (r *searchLogRepository) Create(ctx context.Context, entry *model.VectorSearchLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *searchLogRepository) List(ctx context.Context, page, size int) ([]model.VectorSearchLog, int64, error) {
	var (
		entries []model.VectorSearchLog
		total   int64
	)
	q := r.db.WithContext(ctx).Model(&model.VectorSearchLog{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Omit("query_embedding").Order("created_at DESC").Offset((page - 1) * size).Limit(size).Find(&entries).Error
	return entries, total, err
}

func (r *searchLogRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.VectorSearchLog{}).Count(&n).Error
	return n, err
}
