package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lawspark-go/pkg/apperrors"
)

// EmbeddingRecord 对应 document_embeddings 表，每个分块一行。
type EmbeddingRecord struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	DocumentID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_embedding_doc_chunk,priority:1"`
	RunID      uuid.UUID       `gorm:"type:uuid;index"`
	ChunkIndex int             `gorm:"not null;uniqueIndex:idx_embedding_doc_chunk,priority:2"`
	ChunkText  string          `gorm:"type:text;not null"`
	Embedding  pgvector.Vector `gorm:"type:vector;not null"`
	Metadata   datatypes.JSON  `gorm:"type:jsonb"`
	CreatedAt  time.Time
}

func (EmbeddingRecord) TableName() string {
	return "document_embeddings"
}

func (r *EmbeddingRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// EmbeddingMetadata 是写入 document_embeddings.metadata 的内容。
type EmbeddingMetadata struct {
	Model        string `json:"model"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

// Embedding job statuses.
const (
	JobPending  = "pending"
	JobPartial  = "partial"
	JobComplete = "complete"
	JobFailed   = "failed"
)

// EmbeddingJob 对应 embedding_jobs 表。document_id 唯一，插入成功即为抢占到本次生成。
// RunID 标识当前持有任务的那次生成，只有它能写回最终状态。
type EmbeddingJob struct {
	ID           uuid.UUID                                     `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID   uuid.UUID                                     `gorm:"type:uuid;uniqueIndex;not null" json:"documentId"`
	Status       string                                        `gorm:"type:varchar(16);index;not null" json:"status"`
	Model        string                                        `gorm:"type:varchar(128)" json:"model"`
	ChunkSize    int                                           `gorm:"not null" json:"chunkSize"`
	ChunkOverlap int                                           `gorm:"not null" json:"chunkOverlap"`
	TotalChunks  int                                           `gorm:"not null;default:0" json:"totalChunks"`
	StoredChunks int                                           `gorm:"not null;default:0" json:"storedChunks"`
	Failures     datatypes.JSONSlice[apperrors.PerChunkFailure] `gorm:"type:jsonb" json:"failures"`
	RequestedBy  *uuid.UUID                                    `gorm:"type:uuid" json:"requestedBy,omitempty"`
	RunID        uuid.UUID                                     `gorm:"type:uuid" json:"-"`
	StartedAt    time.Time                                     `json:"startedAt"`
	FinishedAt   *time.Time                                    `json:"finishedAt,omitempty"`
	CreatedAt    time.Time                                     `json:"createdAt"`
	UpdatedAt    time.Time                                     `json:"updatedAt"`
}

func (EmbeddingJob) TableName() string {
	return "embedding_jobs"
}

func (j *EmbeddingJob) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// MatchedChunk 是 match_document_embeddings 返回的一行。
type MatchedChunk struct {
	ID           uuid.UUID      `json:"id"`
	DocumentID   uuid.UUID      `json:"documentId"`
	UserID       uuid.UUID      `json:"-"`
	ChunkIndex   int            `json:"chunkIndex"`
	ChunkText    string         `json:"chunkText"`
	Metadata     datatypes.JSON `json:"metadata"`
	Similarity   float64        `json:"similarity"`
	Title        string         `json:"title"`
	DocumentType string         `json:"documentType"`
	Categories   pq.StringArray `gorm:"type:text[]" json:"categories"`
	DocumentDate *time.Time     `json:"documentDate,omitempty"`
}
