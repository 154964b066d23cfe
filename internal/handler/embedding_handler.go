package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lawspark-go/internal/model"
	"lawspark-go/internal/service"
	"lawspark-go/pkg/log"
)

// EmbeddingHandler 处理向量生成相关的请求。
type EmbeddingHandler struct {
	embeddingService service.EmbeddingService
}

// NewEmbeddingHandler 创建一个新的 EmbeddingHandler 实例。
func NewEmbeddingHandler(embeddingService service.EmbeddingService) *EmbeddingHandler {
	return &EmbeddingHandler{embeddingService: embeddingService}
}

// Generate 同步执行切块与向量化。文档已完成时直接返回 alreadyEmbedded。
func (h *EmbeddingHandler) Generate(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}
	var req model.GenerateEmbeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "documentId is required")
		return
	}
	docID, err := uuid.Parse(req.DocumentID)
	if err != nil {
		badRequest(c, "invalid documentId")
		return
	}
	log.Infof("[EmbeddingHandler] 收到向量生成请求, document=%s, chunkSize=%d", docID, req.ChunkSize)

	res, err := h.embeddingService.Generate(c.Request.Context(), service.GenerateParams{
		DocumentID:   docID,
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: req.ChunkOverlap,
		RequestedBy:  &requester.UserID,
		Requester:    &requester,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *EmbeddingHandler) Status(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}
	docID, ok := uuidParam(c, "documentId")
	if !ok {
		return
	}
	status, err := h.embeddingService.Status(c.Request.Context(), docID, &requester)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, status)
}
