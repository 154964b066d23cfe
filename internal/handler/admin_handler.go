package handler

import (
	"github.com/gin-gonic/gin"

	"lawspark-go/internal/service"
)

// AdminHandler 处理管理员接口。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

type regenerateRequest struct {
	ChunkSize    int  `json:"chunkSize"`
	ChunkOverlap *int `json:"chunkOverlap"`
}

func (h *AdminHandler) AuditLogs(c *gin.Context) {
	page, size := pageParams(c)
	res, err := h.adminService.AuditLogs(c.Request.Context(), c.Query("action"), page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *AdminHandler) SearchLogs(c *gin.Context) {
	page, size := pageParams(c)
	res, err := h.adminService.SearchLogs(c.Request.Context(), page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *AdminHandler) EmbeddingJobs(c *gin.Context) {
	page, size := pageParams(c)
	res, err := h.adminService.EmbeddingJobs(c.Request.Context(), c.Query("status"), page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

// Regenerate 删除文档已有向量并按请求体中的分块参数重新生成，请求体可以为空。
func (h *AdminHandler) Regenerate(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}
	docID, ok := uuidParam(c, "documentId")
	if !ok {
		return
	}
	var req regenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	res, err := h.adminService.Regenerate(c.Request.Context(), requester.UserID, service.GenerateParams{
		DocumentID:   docID,
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: req.ChunkOverlap,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.adminService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, stats)
}
