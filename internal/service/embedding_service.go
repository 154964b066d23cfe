package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"lawspark-go/internal/model"
	"lawspark-go/internal/repository"
	"lawspark-go/pkg/apperrors"
	"lawspark-go/pkg/embedding"
	"lawspark-go/pkg/legaltext"
	"lawspark-go/pkg/log"
	"lawspark-go/pkg/metrics"
)

// DefaultBatchSize bounds the number of concurrent embedding calls per document.
const DefaultBatchSize = 5

// GenerateParams 描述一次向量生成请求。ChunkSize 为 0、ChunkOverlap 为 nil 时使用默认值。
// Requester 为 nil 表示内部调用（worker、CLI），不做访问控制。
type GenerateParams struct {
	DocumentID   uuid.UUID
	ChunkSize    int
	ChunkOverlap *int
	RequestedBy  *uuid.UUID
	Requester    *Requester
}

// EmbeddingService 把文档切块、向量化并写入 document_embeddings。
type EmbeddingService interface {
	// Generate 在文档尚未完成向量化时执行生成；已完成时返回 already embedded。
	Generate(ctx context.Context, params GenerateParams) (*model.EmbeddingResult, error)
	// Regenerate 删除已有向量并按新的分块参数重新生成。
	Regenerate(ctx context.Context, params GenerateParams) (*model.EmbeddingResult, error)
	Status(ctx context.Context, documentID uuid.UUID, requester *Requester) (*model.EmbeddingStatus, error)
}

// EmbeddingDeps 汇总 EmbeddingService 的依赖。Indexer、Audit 与 Metrics 可以为 nil。
type EmbeddingDeps struct {
	Documents  repository.DocumentRepository
	Embeddings repository.EmbeddingRepository
	Jobs       repository.EmbeddingJobRepository
	Metadata   repository.MetadataRepository
	Audit      repository.AuditLogRepository
	Indexer    MetadataIndexer
	Embedder   embedding.Client
	Metrics    *metrics.Metrics
	BatchSize  int
	// JobLease 之后仍为 pending 的任务视为遗留，默认 DefaultJobLease。
	JobLease time.Duration
}

type embeddingService struct {
	docs      repository.DocumentRepository
	records   repository.EmbeddingRepository
	jobs      repository.EmbeddingJobRepository
	embedder  embedding.Client
	metadata  metadataSyncer
	audit     auditor
	metrics   *metrics.Metrics
	batchSize int
	jobLease  time.Duration
	now       func() time.Time
}

// NewEmbeddingService 创建一个新的 EmbeddingService 实例。
func NewEmbeddingService(deps EmbeddingDeps) EmbeddingService {
	batchSize := deps.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	lease := deps.JobLease
	if lease <= 0 {
		lease = DefaultJobLease
	}
	return &embeddingService{
		docs:      deps.Documents,
		records:   deps.Embeddings,
		jobs:      deps.Jobs,
		embedder:  deps.Embedder,
		metadata:  metadataSyncer{repo: deps.Metadata, index: deps.Indexer},
		audit:     auditor{repo: deps.Audit},
		metrics:   deps.Metrics,
		batchSize: batchSize,
		jobLease:  lease,
		now:       time.Now,
	}
}

func normalizeChunkParams(size int, overlapParam *int) (int, int, error) {
	if size == 0 {
		size = legaltext.DefaultChunkSize
	}
	overlap := legaltext.DefaultChunkOverlap
	if overlapParam != nil {
		overlap = *overlapParam
	}
	if size < 0 || overlap < 0 {
		return 0, 0, apperrors.Invalidf("chunkSize and chunkOverlap must be positive")
	}
	if overlap >= size {
		return 0, 0, apperrors.Invalidf("chunkOverlap (%d) must be smaller than chunkSize (%d)", overlap, size)
	}
	return size, overlap, nil
}

func (s *embeddingService) Generate(ctx context.Context, params GenerateParams) (*model.EmbeddingResult, error) {
	return s.generate(ctx, params, false)
}

func (s *embeddingService) Regenerate(ctx context.Context, params GenerateParams) (*model.EmbeddingResult, error) {
	return s.generate(ctx, params, true)
}

func (s *embeddingService) generate(ctx context.Context, params GenerateParams, force bool) (*model.EmbeddingResult, error) {
	size, overlap, err := normalizeChunkParams(params.ChunkSize, params.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	// 1. 加载文档
	doc, err := s.docs.FindByID(ctx, params.DocumentID)
	if err != nil {
		return nil, err
	}
	if params.Requester != nil && !params.Requester.canAccess(doc) {
		return nil, apperrors.NotFoundf("document %s not found", doc.ID)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return nil, apperrors.Invalidf("document %s has no text content", doc.ID)
	}

	// 2. 抢占 embedding_jobs 中的任务行
	now := s.now()
	job := &model.EmbeddingJob{
		RunID:        uuid.New(),
		DocumentID:   doc.ID,
		Status:       model.JobPending,
		Model:        s.embedder.Model(),
		ChunkSize:    size,
		ChunkOverlap: overlap,
		RequestedBy:  params.RequestedBy,
		StartedAt:    now,
	}
	won, err := s.jobs.Claim(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("claim embedding job: %w", err)
	}

	if won {
		existing, err := s.records.CountByDocument(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("count existing embeddings: %w", err)
		}
		if existing > 0 {
			if !force {
				// 任务表出现之前写入的向量：登记为已完成
				return s.adoptLegacyRecords(ctx, job, int(existing))
			}
			if err := s.records.DeleteByDocument(ctx, doc.ID); err != nil {
				return nil, s.abandon(ctx, job, fmt.Errorf("delete stale embeddings: %w", err))
			}
		}
	} else {
		current, err := s.jobs.FindByDocument(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		if jobInFlight(current, s.jobLease, now) {
			return nil, apperrors.Conflictf("embedding already in progress for document %s", doc.ID)
		}
		if current.Status == model.JobComplete && !force {
			log.Infof("[EmbeddingService] 文档已完成向量化, document=%s, chunks=%d", doc.ID, current.StoredChunks)
			return alreadyEmbedded(current), nil
		}

		from := []string{model.JobPartial, model.JobFailed}
		if force {
			from = append(from, model.JobComplete)
		}
		// 超过租约的 pending 任务也可以接管
		reclaimed, err := s.jobs.Reclaim(ctx, job, now.Add(-s.jobLease), from...)
		if err != nil {
			return nil, fmt.Errorf("reclaim embedding job: %w", err)
		}
		if !reclaimed {
			return nil, apperrors.Conflictf("embedding already in progress for document %s", doc.ID)
		}
		job.ID = current.ID
		job.CreatedAt = current.CreatedAt

		log.Infof("[EmbeddingService] 重新生成向量, document=%s, previous_status=%s", doc.ID, current.Status)
		if err := s.records.DeleteByDocument(ctx, doc.ID); err != nil {
			return nil, s.abandon(ctx, job, fmt.Errorf("delete stale embeddings: %w", err))
		}
	}

	// 3. 切块并向量化
	result, err := s.run(ctx, doc, job)
	if err != nil {
		return nil, err
	}

	action := model.ActionEmbeddingGenerate
	if force {
		action = model.ActionEmbeddingRegenerate
	}
	s.audit.record(ctx, params.RequestedBy, action, "document", doc.ID.String(), map[string]interface{}{
		"status":       result.Status,
		"chunkCount":   result.ChunkCount,
		"storedChunks": result.StoredChunks,
		"failedChunks": len(result.Failures),
		"chunkSize":    size,
		"chunkOverlap": overlap,
	})
	return result, nil
}

// adoptLegacyRecords 把已有但未登记的向量视为完成。
func (s *embeddingService) adoptLegacyRecords(ctx context.Context, job *model.EmbeddingJob, count int) (*model.EmbeddingResult, error) {
	now := time.Now()
	job.Status = model.JobComplete
	job.TotalChunks = count
	job.StoredChunks = count
	job.FinishedAt = &now
	job.Failures = []apperrors.PerChunkFailure{}
	if _, err := s.jobs.Finish(ctx, job); err != nil {
		return nil, fmt.Errorf("record legacy embeddings: %w", err)
	}
	log.Infof("[EmbeddingService] 发现未登记的向量记录, document=%s, count=%d", job.DocumentID, count)
	return alreadyEmbedded(job), nil
}

// abandon 在生成开始前失败时把任务标记为 failed，使其可以被再次抢占。
func (s *embeddingService) abandon(ctx context.Context, job *model.EmbeddingJob, cause error) error {
	now := time.Now()
	job.Status = model.JobFailed
	job.FinishedAt = &now
	job.Failures = []apperrors.PerChunkFailure{}
	if _, err := s.jobs.Finish(context.WithoutCancel(ctx), job); err != nil {
		log.Errorf("[EmbeddingService] 标记任务失败状态时出错, document=%s: %v", job.DocumentID, err)
	}
	s.metrics.JobFinished(model.JobFailed)
	return cause
}

func (s *embeddingService) run(ctx context.Context, doc *model.LegalDocument, job *model.EmbeddingJob) (*model.EmbeddingResult, error) {
	chunks := legaltext.SplitIntoChunks(doc.Content, job.ChunkSize, job.ChunkOverlap)
	job.TotalChunks = len(chunks)
	log.Infof("[EmbeddingService] 开始向量化, document=%s, chunks=%d, chunk_size=%d, overlap=%d", doc.ID, len(chunks), job.ChunkSize, job.ChunkOverlap)

	meta, err := json.Marshal(model.EmbeddingMetadata{
		Model:        job.Model,
		ChunkSize:    job.ChunkSize,
		ChunkOverlap: job.ChunkOverlap,
	})
	if err != nil {
		return nil, s.abandon(ctx, job, err)
	}

	var (
		mu       sync.Mutex
		stored   int
		failures = make([]apperrors.PerChunkFailure, 0)
		fatal    error
	)

	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		// 批内并发，整批完成后再进入下一批
		var g errgroup.Group
		for _, chunk := range chunks[start:end] {
			chunk := chunk
			g.Go(func() error {
				err := s.embedChunk(ctx, doc.ID, job.RunID, chunk, meta)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures = append(failures, apperrors.PerChunkFailure{ChunkIndex: chunk.Index, Reason: err.Error()})
					if errors.Is(err, apperrors.ErrConfiguration) && fatal == nil {
						fatal = err
					}
					return nil
				}
				stored++
				return nil
			})
		}
		_ = g.Wait()

		if fatal != nil || ctx.Err() != nil {
			reason := fatal
			if reason == nil {
				reason = ctx.Err()
			}
			for _, chunk := range chunks[end:] {
				failures = append(failures, apperrors.PerChunkFailure{ChunkIndex: chunk.Index, Reason: reason.Error()})
			}
			break
		}
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].ChunkIndex < failures[j].ChunkIndex })

	// 4. 记录最终状态（即使调用方已取消也要落库）
	now := time.Now()
	job.StoredChunks = stored
	job.Failures = failures
	job.FinishedAt = &now
	switch {
	case len(failures) == 0:
		job.Status = model.JobComplete
	case stored > 0:
		job.Status = model.JobPartial
	default:
		job.Status = model.JobFailed
	}
	persistCtx := context.WithoutCancel(ctx)
	owned, err := s.jobs.Finish(persistCtx, job)
	if err != nil {
		log.Errorf("[EmbeddingService] 保存任务状态失败, document=%s: %v", doc.ID, err)
	} else if !owned {
		// 任务行在生成期间被删除或被接管，本次写入的向量不再可信
		log.Warnf("[EmbeddingService] 任务已被删除或接管, 丢弃本次结果, document=%s", doc.ID)
		if err := s.records.DeleteByRun(persistCtx, doc.ID, job.RunID); err != nil {
			log.Errorf("[EmbeddingService] 清理本次写入的向量失败, document=%s: %v", doc.ID, err)
		}
		return nil, apperrors.Conflictf("embedding job for document %s was superseded", doc.ID)
	}

	s.metrics.ChunksEmbedded(stored, len(failures))
	s.metrics.JobFinished(job.Status)
	log.Infow("[EmbeddingService] 向量化结束",
		"document", doc.ID.String(),
		"status", job.Status,
		"stored", stored,
		"failed", len(failures),
	)

	if fatal != nil {
		return nil, fatal
	}

	if stored > 0 {
		s.metadata.sync(persistCtx, doc, job.Status == model.JobComplete)
	}

	return &model.EmbeddingResult{
		DocumentID:   doc.ID,
		Status:       job.Status,
		ChunkCount:   len(chunks),
		StoredChunks: stored,
		Failures:     failures,
		Model:        job.Model,
		ChunkSize:    job.ChunkSize,
		ChunkOverlap: job.ChunkOverlap,
	}, nil
}

func (s *embeddingService) embedChunk(ctx context.Context, documentID, runID uuid.UUID, chunk legaltext.Chunk, meta []byte) error {
	vec, err := s.embedder.CreateEmbedding(ctx, chunk.Content)
	if err != nil {
		return err
	}
	record := &model.EmbeddingRecord{
		DocumentID: documentID,
		RunID:      runID,
		ChunkIndex: chunk.Index,
		ChunkText:  chunk.Content,
		Embedding:  pgvector.NewVector(vec),
		Metadata:   datatypes.JSON(meta),
	}
	if err := s.records.Insert(ctx, record); err != nil {
		return fmt.Errorf("store chunk: %w", err)
	}
	return nil
}

func (s *embeddingService) Status(ctx context.Context, documentID uuid.UUID, requester *Requester) (*model.EmbeddingStatus, error) {
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if requester != nil && !requester.canAccess(doc) {
		return nil, apperrors.NotFoundf("document %s not found", documentID)
	}
	count, err := s.records.CountByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	status := &model.EmbeddingStatus{DocumentID: documentID, RecordCount: count}
	job, err := s.jobs.FindByDocument(ctx, documentID)
	switch {
	case err == nil:
		status.Job = job
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}
	return status, nil
}

func alreadyEmbedded(job *model.EmbeddingJob) *model.EmbeddingResult {
	return &model.EmbeddingResult{
		DocumentID:      job.DocumentID,
		Status:          job.Status,
		AlreadyEmbedded: true,
		ChunkCount:      job.StoredChunks,
		StoredChunks:    job.StoredChunks,
		Failures:        []apperrors.PerChunkFailure{},
		Model:           job.Model,
		ChunkSize:       job.ChunkSize,
		ChunkOverlap:    job.ChunkOverlap,
	}
}
