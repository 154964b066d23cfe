// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"lawspark-go/internal/model"
	"lawspark-go/internal/repository"
	"lawspark-go/pkg/legaltext"
	"lawspark-go/pkg/log"
	"lawspark-go/pkg/tasks"
)

// Requester 是经过认证的调用方。
type Requester struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// canAccess 文档只对上传者和管理员可见。
func (r Requester) canAccess(doc *model.LegalDocument) bool {
	return r.IsAdmin || doc.UserID == r.UserID
}

// DefaultJobLease 是 pending 任务的默认租约。
const DefaultJobLease = 30 * time.Minute

// jobInFlight 任务为 pending 且仍在租约内，说明有生成正在进行。
func jobInFlight(job *model.EmbeddingJob, lease time.Duration, now time.Time) bool {
	return job.Status == model.JobPending && now.Sub(job.StartedAt) < lease
}

// MetadataIndexer 是文档元数据的检索索引（Elasticsearch）。
type MetadataIndexer interface {
	IndexMetadata(ctx context.Context, doc model.EsMetadataDocument) error
	DeleteMetadata(ctx context.Context, documentID string) error
	SearchMetadata(ctx context.Context, query, userID string, size int) ([]model.KeywordHit, error)
}

// ObjectStore 保存上传的原始文件。
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
}

// TextExtractor 从上传文件中提取纯文本。
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error)
}

// TaskPublisher 投递后台向量化任务。
type TaskPublisher interface {
	PublishEmbeddingTask(ctx context.Context, task tasks.EmbeddingTask) error
}

// auditor 写 audit_logs，失败只记录日志。
type auditor struct {
	repo repository.AuditLogRepository
}

func (a auditor) record(ctx context.Context, userID *uuid.UUID, action, resourceType, resourceID string, details interface{}) {
	if a.repo == nil {
		return
	}
	raw, err := json.Marshal(details)
	if err != nil {
		log.Warnf("[Audit] 序列化审计详情失败: %v", err)
		raw = []byte("{}")
	}
	entry := &model.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      datatypes.JSON(raw),
	}
	if err := a.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		log.Warnf("[Audit] 写入审计日志失败, action=%s, resource=%s: %v", action, resourceID, err)
	}
}

// metadataSyncer 维护 document_metadata 行以及 Elasticsearch 中的副本。
type metadataSyncer struct {
	repo  repository.MetadataRepository
	index MetadataIndexer
}

func (m metadataSyncer) sync(ctx context.Context, doc *model.LegalDocument, embedded bool) {
	keywords := legaltext.ExtractKeywords(doc.Content)
	domains := []string(doc.LegalDomains)
	if len(domains) == 0 {
		domains = legaltext.DetectDomains(doc.Content)
	}

	if m.repo != nil {
		meta := &model.DocumentMetadata{
			DocumentID:   doc.ID,
			Title:        doc.Title,
			Description:  doc.Description,
			Source:       doc.Source,
			Language:     doc.Language,
			DocumentType: doc.DocumentType,
			Categories:   doc.Categories,
			Keywords:     keywords,
			LegalDomains: domains,
		}
		if err := m.repo.Upsert(ctx, meta); err != nil {
			log.Warnf("[Metadata] upsert document_metadata 失败, document=%s: %v", doc.ID, err)
		}
	}

	if m.index != nil {
		esDoc := model.EsMetadataDocument{
			DocumentID:   doc.ID.String(),
			UserID:       doc.UserID.String(),
			Title:        doc.Title,
			Description:  doc.Description,
			DocumentType: doc.DocumentType,
			Jurisdiction: doc.Jurisdiction,
			Language:     doc.Language,
			Source:       doc.Source,
			Categories:   doc.Categories,
			Keywords:     keywords,
			LegalDomains: domains,
			Embedded:     embedded,
		}
		if err := m.index.IndexMetadata(ctx, esDoc); err != nil {
			log.Warnf("[Metadata] 写入 Elasticsearch 失败, document=%s: %v", doc.ID, err)
		}
	}
}

func (m metadataSyncer) remove(ctx context.Context, documentID uuid.UUID) {
	if m.repo != nil {
		if err := m.repo.DeleteByDocument(ctx, documentID); err != nil {
			log.Warnf("[Metadata] 删除 document_metadata 失败, document=%s: %v", documentID, err)
		}
	}
	if m.index != nil {
		if err := m.index.DeleteMetadata(ctx, documentID.String()); err != nil {
			log.Warnf("[Metadata] 删除 Elasticsearch 元数据失败, document=%s: %v", documentID, err)
		}
	}
}

// normalizePage 把分页参数限制在合理范围。
func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
