// Package model 定义了与数据库表对应的 Go 结构体以及接口 DTO。
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// LegalDocument 对应 legal_documents 表，是向量化流程的输入。
type LegalDocument struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;index;not null" json:"userId"`
	Title        string         `gorm:"type:text;not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	Content      string         `gorm:"type:text;not null" json:"content,omitempty"`
	DocumentType string         `gorm:"type:varchar(64);index" json:"documentType"`
	Jurisdiction string         `gorm:"type:varchar(64)" json:"jurisdiction"`
	Language     string         `gorm:"type:varchar(16);default:'en'" json:"language"`
	Source       string         `gorm:"type:varchar(255)" json:"source"`
	Categories   pq.StringArray `gorm:"type:text[]" json:"categories"`
	DocumentDate *time.Time     `gorm:"type:date" json:"documentDate,omitempty"`
	FileName     string         `gorm:"type:varchar(255)" json:"fileName,omitempty"`
	ObjectKey    string         `gorm:"type:varchar(512)" json:"-"`
	IsAnonymized bool           `gorm:"not null;default:false" json:"isAnonymized"`
	Complexity   string         `gorm:"type:varchar(16)" json:"complexity,omitempty"`
	LegalDomains pq.StringArray `gorm:"type:text[]" json:"legalDomains,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (LegalDocument) TableName() string {
	return "legal_documents"
}

func (d *LegalDocument) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DocumentMetadata 对应 document_metadata 表，每个文档一行，按 document_id upsert。
type DocumentMetadata struct {
	DocumentID   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"documentId"`
	Title        string         `gorm:"type:text" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	Source       string         `gorm:"type:varchar(255)" json:"source"`
	Language     string         `gorm:"type:varchar(16)" json:"language"`
	DocumentType string         `gorm:"type:varchar(64)" json:"documentType"`
	Categories   pq.StringArray `gorm:"type:text[]" json:"categories"`
	Keywords     pq.StringArray `gorm:"type:text[]" json:"keywords"`
	LegalDomains pq.StringArray `gorm:"type:text[]" json:"legalDomains"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (DocumentMetadata) TableName() string {
	return "document_metadata"
}
