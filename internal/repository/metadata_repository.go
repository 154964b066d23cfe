package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lawspark-go/internal/model"
)

// MetadataRepository 维护 document_metadata，生命周期独立于向量记录。
type MetadataRepository interface {
	Upsert(ctx context.Context, meta *model.DocumentMetadata) error
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) error
}

type metadataRepository struct {
	db *gorm.DB
}

func NewMetadataRepository(db *gorm.DB) MetadataRepository {
	return &metadataRepository{db: db}
}

func (r *metadataRepository) Upsert(ctx context.Context, meta *model.DocumentMetadata) error {
	meta.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "document_id"}}, UpdateAll: true}).
		Create(meta).Error
}

func (r *metadataRepository) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.DocumentMetadata{}).Error
}
