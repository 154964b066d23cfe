package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"lawspark-go/internal/model"
	"lawspark-go/internal/service"
	"lawspark-go/pkg/log"
)

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search 是相似度检索的 Gin 处理函数。
func (h *SearchHandler) Search(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[SearchHandler] 请求体解析失败: %v", err)
		badRequest(c, "query is required")
		return
	}
	log.Infof("[SearchHandler] 收到检索请求, query: %s, limit: %d", req.Query, req.Limit)

	res, err := h.searchService.Search(c.Request.Context(), req, requester)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

// KeywordSearch 在元数据索引上按关键词检索。
func (h *SearchHandler) KeywordSearch(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.searchService.KeywordSearch(c.Request.Context(), c.Query("q"), requester.UserID, size)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, hits)
}
