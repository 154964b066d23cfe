package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"lawspark-go/internal/config"
	"lawspark-go/internal/model"
	"lawspark-go/internal/repository"
	"lawspark-go/pkg/apperrors"
	"lawspark-go/pkg/legaltext"
	"lawspark-go/pkg/log"
	"lawspark-go/pkg/storage"
	"lawspark-go/pkg/tasks"
)

// UploadInput 是上传文件时的参数，元数据字段与纯文本创建共用。
type UploadInput struct {
	Meta        model.CreateTextDocumentRequest
	FileName    string
	ContentType string
	Size        int64
	File        io.Reader
}

// DownloadInfoDTO 封装了文件下载链接所需的信息。
type DownloadInfoDTO struct {
	FileName    string    `json:"fileName"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// DocumentService 接口定义了文档管理相关的业务操作。
type DocumentService interface {
	Upload(ctx context.Context, req Requester, in UploadInput) (*model.LegalDocument, error)
	CreateFromText(ctx context.Context, req Requester, in model.CreateTextDocumentRequest) (*model.LegalDocument, error)
	Get(ctx context.Context, req Requester, id uuid.UUID) (*model.LegalDocument, error)
	List(ctx context.Context, req Requester, page, size int) (*model.Page[model.LegalDocument], error)
	Delete(ctx context.Context, req Requester, id uuid.UUID) error
	DownloadURL(ctx context.Context, req Requester, id uuid.UUID) (*DownloadInfoDTO, error)
	Analyze(ctx context.Context, req Requester, id uuid.UUID) (*model.ContractAnalysis, error)
	Anonymize(ctx context.Context, req Requester, id uuid.UUID) (*model.LegalDocument, error)
}

// DocumentDeps 汇总 DocumentService 的依赖。Store、Extractor、Publisher、Indexer 可以为 nil。
type DocumentDeps struct {
	Documents     repository.DocumentRepository
	Embeddings    repository.EmbeddingRepository
	Jobs          repository.EmbeddingJobRepository
	Metadata      repository.MetadataRepository
	Audit         repository.AuditLogRepository
	Indexer       MetadataIndexer
	Store         ObjectStore
	Extractor     TextExtractor
	Publisher     TaskPublisher
	Answers       AnswerService
	Pipeline      config.PipelineConfig
	PresignExpiry time.Duration
}

type documentService struct {
	docs          repository.DocumentRepository
	records       repository.EmbeddingRepository
	jobs          repository.EmbeddingJobRepository
	metadata      metadataSyncer
	audit         auditor
	store         ObjectStore
	extractor     TextExtractor
	publisher     TaskPublisher
	answers       AnswerService
	pipeline      config.PipelineConfig
	presignExpiry time.Duration
	jobLease      time.Duration
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(deps DocumentDeps) DocumentService {
	expiry := deps.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	lease := deps.Pipeline.JobLease()
	if lease <= 0 {
		lease = DefaultJobLease
	}
	return &documentService{
		docs:          deps.Documents,
		records:       deps.Embeddings,
		jobs:          deps.Jobs,
		metadata:      metadataSyncer{repo: deps.Metadata, index: deps.Indexer},
		audit:         auditor{repo: deps.Audit},
		store:         deps.Store,
		extractor:     deps.Extractor,
		publisher:     deps.Publisher,
		answers:       deps.Answers,
		pipeline:      deps.Pipeline,
		presignExpiry: expiry,
		jobLease:      lease,
	}
}

func newDocument(owner uuid.UUID, in model.CreateTextDocumentRequest) (*model.LegalDocument, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperrors.Invalidf("title must not be empty")
	}
	doc := &model.LegalDocument{
		ID:           uuid.New(),
		UserID:       owner,
		Title:        title,
		Description:  in.Description,
		Content:      in.Content,
		DocumentType: in.DocumentType,
		Jurisdiction: in.Jurisdiction,
		Language:     in.Language,
		Source:       in.Source,
		Categories:   in.Categories,
	}
	if doc.Language == "" {
		doc.Language = "en"
	}
	if in.DocumentDate != "" {
		t, err := time.Parse(dateLayout, in.DocumentDate)
		if err != nil {
			return nil, apperrors.Invalidf("documentDate must be YYYY-MM-DD")
		}
		doc.DocumentDate = &t
	}
	return doc, nil
}

// Upload 保存原始文件到 MinIO，经 Tika 提取文本后创建文档。
func (s *documentService) Upload(ctx context.Context, req Requester, in UploadInput) (*model.LegalDocument, error) {
	if s.store == nil || s.extractor == nil {
		return nil, &apperrors.ConfigurationError{Key: "minio/tika"}
	}
	fileName := filepath.Base(strings.TrimSpace(in.FileName))
	if fileName == "" || fileName == "." || fileName == "/" {
		return nil, apperrors.Invalidf("file name must not be empty")
	}
	doc, err := newDocument(req.UserID, in.Meta)
	if err != nil {
		return nil, err
	}

	// 需要读两遍（MinIO + Tika），先整体读入内存
	data, err := io.ReadAll(in.File)
	if err != nil {
		return nil, apperrors.Invalidf("read upload: %v", err)
	}
	if len(data) == 0 {
		return nil, apperrors.Invalidf("uploaded file is empty")
	}

	// 1. 提取文本
	text, err := s.extractor.ExtractText(ctx, bytes.NewReader(data), fileName)
	if err != nil {
		log.Errorf("[DocumentService] Tika 提取文本失败, file=%s: %v", fileName, err)
		return nil, apperrors.Remote("tika", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.Invalidf("no text could be extracted from %s", fileName)
	}
	doc.Content = text
	doc.FileName = fileName
	doc.ObjectKey = storage.ObjectKey(doc.ID.String(), fileName)

	// 2. 保存原始文件
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.store.Put(ctx, doc.ObjectKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		log.Errorf("[DocumentService] 上传到 MinIO 失败, key=%s: %v", doc.ObjectKey, err)
		return nil, apperrors.Remote("minio", err)
	}

	// 3. 写库
	if err := s.create(ctx, req, doc); err != nil {
		if rmErr := s.store.Remove(context.WithoutCancel(ctx), doc.ObjectKey); rmErr != nil {
			log.Warnf("[DocumentService] 回滚 MinIO 对象失败, key=%s: %v", doc.ObjectKey, rmErr)
		}
		return nil, err
	}
	return doc, nil
}

func (s *documentService) CreateFromText(ctx context.Context, req Requester, in model.CreateTextDocumentRequest) (*model.LegalDocument, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperrors.Invalidf("content must not be empty")
	}
	doc, err := newDocument(req.UserID, in)
	if err != nil {
		return nil, err
	}
	if err := s.create(ctx, req, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// create 写入 legal_documents，同步元数据并按配置投递向量化任务。
func (s *documentService) create(ctx context.Context, req Requester, doc *model.LegalDocument) error {
	doc.Complexity = legaltext.AssessComplexity(doc.Content)
	doc.LegalDomains = legaltext.DetectDomains(doc.Content)
	if err := s.docs.Create(ctx, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	log.Infof("[DocumentService] 文档已创建, id=%s, title=%s, chars=%d", doc.ID, doc.Title, len(doc.Content))

	s.metadata.sync(ctx, doc, false)
	s.audit.record(ctx, &req.UserID, model.ActionDocumentCreate, "document", doc.ID.String(), map[string]interface{}{
		"title":    doc.Title,
		"fileName": doc.FileName,
	})
	s.enqueueEmbedding(ctx, req, doc.ID)
	return nil
}

func (s *documentService) enqueueEmbedding(ctx context.Context, req Requester, id uuid.UUID) {
	if !s.pipeline.AutoEmbed || s.publisher == nil {
		return
	}
	overlap := s.pipeline.ChunkOverlap
	task := tasks.EmbeddingTask{
		DocumentID:   id.String(),
		ChunkSize:    s.pipeline.ChunkSize,
		ChunkOverlap: &overlap,
		RequestedBy:  req.UserID.String(),
	}
	if err := s.publisher.PublishEmbeddingTask(ctx, task); err != nil {
		// 文档已经落库，可通过 /embeddings/generate 手动补齐
		log.Errorf("[DocumentService] 投递向量化任务失败, document=%s: %v", id, err)
	}
}

// load 读取文档并做访问控制，无权访问时按不存在处理。
func (s *documentService) load(ctx context.Context, req Requester, id uuid.UUID) (*model.LegalDocument, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.canAccess(doc) {
		return nil, apperrors.NotFoundf("document %s not found", id)
	}
	return doc, nil
}

func (s *documentService) Get(ctx context.Context, req Requester, id uuid.UUID) (*model.LegalDocument, error) {
	return s.load(ctx, req, id)
}

func (s *documentService) List(ctx context.Context, req Requester, page, size int) (*model.Page[model.LegalDocument], error) {
	page, size = normalizePage(page, size)
	docs, total, err := s.docs.ListByUser(ctx, req.UserID, page, size)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []model.LegalDocument{}
	}
	return &model.Page[model.LegalDocument]{Items: docs, Total: total, Page: page, Size: size}, nil
}

// ensureIdle 文档正在向量化时拒绝删除或改写正文。
func (s *documentService) ensureIdle(ctx context.Context, id uuid.UUID) error {
	job, err := s.jobs.FindByDocument(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load embedding job: %w", err)
	}
	if jobInFlight(job, s.jobLease, time.Now()) {
		return apperrors.Conflictf("embedding in progress for document %s", id)
	}
	return nil
}

// Delete 删除文档以及它的向量、任务行、元数据和原始文件。
func (s *documentService) Delete(ctx context.Context, req Requester, id uuid.UUID) error {
	doc, err := s.load(ctx, req, id)
	if err != nil {
		return err
	}
	if err := s.ensureIdle(ctx, id); err != nil {
		return err
	}
	if err := s.records.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}
	if err := s.jobs.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("delete embedding job: %w", err)
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.metadata.remove(ctx, id)
	if doc.ObjectKey != "" && s.store != nil {
		if err := s.store.Remove(ctx, doc.ObjectKey); err != nil {
			log.Warnf("[DocumentService] 删除 MinIO 对象失败, key=%s: %v", doc.ObjectKey, err)
		}
	}
	s.audit.record(ctx, &req.UserID, model.ActionDocumentDelete, "document", id.String(), map[string]interface{}{
		"title": doc.Title,
	})
	log.Infof("[DocumentService] 文档已删除, id=%s", id)
	return nil
}

func (s *documentService) DownloadURL(ctx context.Context, req Requester, id uuid.UUID) (*DownloadInfoDTO, error) {
	doc, err := s.load(ctx, req, id)
	if err != nil {
		return nil, err
	}
	if doc.ObjectKey == "" {
		return nil, apperrors.NotFoundf("document %s has no stored file", id)
	}
	if s.store == nil {
		return nil, &apperrors.ConfigurationError{Key: "minio"}
	}
	u, err := s.store.PresignedURL(ctx, doc.ObjectKey, s.presignExpiry)
	if err != nil {
		return nil, apperrors.Remote("minio", err)
	}
	return &DownloadInfoDTO{
		FileName:    doc.FileName,
		DownloadURL: u,
		ExpiresAt:   time.Now().Add(s.presignExpiry),
	}, nil
}

func (s *documentService) Analyze(ctx context.Context, req Requester, id uuid.UUID) (*model.ContractAnalysis, error) {
	doc, err := s.load(ctx, req, id)
	if err != nil {
		return nil, err
	}
	return s.answers.Analyze(ctx, doc)
}

// Anonymize 脱敏正文，并清掉基于原文生成的向量。
func (s *documentService) Anonymize(ctx context.Context, req Requester, id uuid.UUID) (*model.LegalDocument, error) {
	doc, err := s.load(ctx, req, id)
	if err != nil {
		return nil, err
	}
	if doc.IsAnonymized {
		return doc, nil
	}
	if err := s.ensureIdle(ctx, id); err != nil {
		return nil, err
	}

	doc.Content = legaltext.Anonymize(doc.Content)
	doc.IsAnonymized = true
	doc.Complexity = legaltext.AssessComplexity(doc.Content)
	doc.LegalDomains = legaltext.DetectDomains(doc.Content)
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}

	// 旧向量包含未脱敏的原文
	if err := s.records.DeleteByDocument(ctx, id); err != nil {
		return nil, fmt.Errorf("delete embeddings: %w", err)
	}
	if err := s.jobs.DeleteByDocument(ctx, id); err != nil {
		return nil, fmt.Errorf("delete embedding job: %w", err)
	}

	s.metadata.sync(ctx, doc, false)
	s.audit.record(ctx, &req.UserID, model.ActionDocumentAnonymize, "document", id.String(), map[string]interface{}{
		"complexity":   doc.Complexity,
		"legalDomains": doc.LegalDomains,
	})
	s.enqueueEmbedding(ctx, req, id)
	return doc, nil
}
