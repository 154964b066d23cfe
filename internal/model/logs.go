package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog 对应 audit_logs 表，仅追加。
type AuditLog struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       *uuid.UUID     `gorm:"type:uuid;index" json:"userId,omitempty"`
	Action       string         `gorm:"type:varchar(64);index;not null" json:"action"`
	ResourceType string         `gorm:"type:varchar(64)" json:"resourceType"`
	ResourceID   string         `gorm:"type:varchar(64)" json:"resourceId"`
	Details      datatypes.JSON `gorm:"type:jsonb" json:"details"`
	CreatedAt    time.Time      `gorm:"index" json:"createdAt"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Audit actions.
const (
	ActionDocumentCreate      = "document.create"
	ActionDocumentDelete      = "document.delete"
	ActionDocumentAnonymize   = "document.anonymize"
	ActionEmbeddingGenerate   = "embedding.generate"
	ActionEmbeddingRegenerate = "embedding.regenerate"
)

// VectorSearchLog 对应 vector_search_logs 表，每次相似度检索写一行。
type VectorSearchLog struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         *uuid.UUID      `gorm:"type:uuid;index" json:"userId,omitempty"`
	Query          string          `gorm:"type:text;not null" json:"query"`
	QueryEmbedding pgvector.Vector `gorm:"type:vector" json:"-"`
	Parameters     datatypes.JSON  `gorm:"type:jsonb" json:"parameters"`
	ResultIDs      pq.StringArray  `gorm:"type:text[]" json:"resultIds"`
	ResultCount    int             `json:"resultCount"`
	DurationMs     int64           `json:"durationMs"`
	CreatedAt      time.Time       `gorm:"index" json:"createdAt"`
}

func (VectorSearchLog) TableName() string {
	return "vector_search_logs"
}

func (l *VectorSearchLog) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
