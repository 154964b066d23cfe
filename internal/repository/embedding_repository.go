package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"lawspark-go/internal/model"
)

// MatchFilter 是附加在 match_document_embeddings 结果上的可选谓词。
// UserID 为 nil 时检索所有文档，否则只检索该用户的文档。
type MatchFilter struct {
	UserID        *uuid.UUID
	DocumentTypes []string
	Categories    []string
	DateFrom      *time.Time
	DateTo        *time.Time
}

// EmbeddingRepository 定义了对 document_embeddings 表的数据操作接口。
type EmbeddingRepository interface {
	CountByDocument(ctx context.Context, documentID uuid.UUID) (int64, error)
	Insert(ctx context.Context, record *model.EmbeddingRecord) error
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) error
	// DeleteByRun 删除某一次生成写入的向量。
	DeleteByRun(ctx context.Context, documentID, runID uuid.UUID) error
	CountAll(ctx context.Context) (int64, error)
	Match(ctx context.Context, query pgvector.Vector, threshold float64, limit int, filter MatchFilter) ([]model.MatchedChunk, error)
}

type embeddingRepository struct {
	db *gorm.DB
}

// NewEmbeddingRepository 创建一个新的 EmbeddingRepository 实例。
func NewEmbeddingRepository(db *gorm.DB) EmbeddingRepository {
	return &embeddingRepository{db: db}
}

func (r *embeddingRepository) CountByDocument(ctx context.Context, documentID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.EmbeddingRecord{}).Where("document_id = ?", documentID).Count(&n).Error
	return n, err
}

func (r *embeddingRepository) Insert(ctx context.Context, record *model.EmbeddingRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *embeddingRepository) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.EmbeddingRecord{}).Error
}

func (r *embeddingRepository) DeleteByRun(ctx context.Context, documentID, runID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ? AND run_id = ?", documentID, runID).Delete(&model.EmbeddingRecord{}).Error
}

func (r *embeddingRepository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.EmbeddingRecord{}).Count(&n).Error
	return n, err
}

// Match 调用 match_document_embeddings，并在同一条语句上追加过滤条件。
func (r *embeddingRepository) Match(ctx context.Context, query pgvector.Vector, threshold float64, limit int, filter MatchFilter) ([]model.MatchedChunk, error) {
	var rows []model.MatchedChunk
	err := matchQuery(r.db.WithContext(ctx), query, threshold, limit, filter).Find(&rows).Error
	return rows, err
}

func matchQuery(db *gorm.DB, query pgvector.Vector, threshold float64, limit int, filter MatchFilter) *gorm.DB {
	// owner 过滤在函数内部、LIMIT 之前完成
	q := db.Table("match_document_embeddings(?, ?, ?, ?) AS m", query, threshold, limit, filter.UserID).Select("m.*")
	if len(filter.DocumentTypes) > 0 {
		q = q.Where("m.document_type IN ?", filter.DocumentTypes)
	}
	if len(filter.Categories) > 0 {
		q = q.Where("m.categories @> ?", pq.StringArray(filter.Categories))
	}
	if filter.DateFrom != nil {
		q = q.Where("m.document_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		q = q.Where("m.document_date <= ?", *filter.DateTo)
	}
	return q.Order("m.similarity DESC")
}
