// Package pipeline 定义了后台向量化任务的处理流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"lawspark-go/internal/model"
	"lawspark-go/internal/service"
	"lawspark-go/pkg/apperrors"
	"lawspark-go/pkg/log"
	"lawspark-go/pkg/tasks"
)

// Processor 把 Kafka 中的 EmbeddingTask 交给 EmbeddingService。
type Processor struct {
	embeddings service.EmbeddingService
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(embeddings service.EmbeddingService) *Processor {
	return &Processor{embeddings: embeddings}
}

// Process 返回 nil 表示任务可以提交；返回错误时由消费者决定是否重试。
func (p *Processor) Process(ctx context.Context, task tasks.EmbeddingTask) error {
	log.Infof("[Processor] 开始处理向量化任务, document=%s", task.DocumentID)

	docID, err := uuid.Parse(task.DocumentID)
	if err != nil {
		log.Errorf("[Processor] 非法的 document_id %q, 丢弃任务", task.DocumentID)
		return nil
	}
	params := service.GenerateParams{
		DocumentID:   docID,
		ChunkSize:    task.ChunkSize,
		ChunkOverlap: task.ChunkOverlap,
	}
	if requester, err := uuid.Parse(task.RequestedBy); err == nil {
		params.RequestedBy = &requester
	}

	res, err := p.embeddings.Generate(ctx, params)
	switch {
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrInvalidInput):
		// 文档已删除或内容为空，重试没有意义
		log.Warnf("[Processor] 跳过任务, document=%s: %v", task.DocumentID, err)
		return nil
	case errors.Is(err, apperrors.ErrConflict):
		log.Infof("[Processor] 文档正在被其他 worker 处理, document=%s", task.DocumentID)
		return nil
	case err != nil:
		return fmt.Errorf("generate embeddings for %s: %w", task.DocumentID, err)
	}

	if res.AlreadyEmbedded {
		log.Infof("[Processor] 文档已完成向量化, document=%s, chunks=%d", task.DocumentID, res.ChunkCount)
		return nil
	}
	if res.Status != model.JobComplete {
		// 再次处理会走修复路径
		return fmt.Errorf("embedding for %s finished as %s with %d failed chunks", task.DocumentID, res.Status, len(res.Failures))
	}
	log.Infof("[Processor] 向量化完成, document=%s, chunks=%d", task.DocumentID, res.StoredChunks)
	return nil
}
