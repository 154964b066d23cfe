// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lawspark-go/internal/model"
	"lawspark-go/pkg/apperrors"
)

// DocumentRepository 定义了对 legal_documents 表的数据操作接口。
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.LegalDocument) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.LegalDocument, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, size int) ([]model.LegalDocument, int64, error)
	Update(ctx context.Context, doc *model.LegalDocument) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int64, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.LegalDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// FindByID 查询单个文档，不存在时返回包装了 ErrNotFound 的错误。
func (r *documentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.LegalDocument, error) {
	var doc model.LegalDocument
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFoundf("document %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, size int) ([]model.LegalDocument, int64, error) {
	var (
		docs  []model.LegalDocument
		total int64
	)
	q := r.db.WithContext(ctx).Model(&model.LegalDocument{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	// 列表不返回正文
	err := q.Omit("content").Order("created_at DESC").Offset((page - 1) * size).Limit(size).Find(&docs).Error
	return docs, total, err
}

func (r *documentRepository) Update(ctx context.Context, doc *model.LegalDocument) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.LegalDocument{}).Error
}

func (r *documentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.LegalDocument{}).Count(&n).Error
	return n, err
}
