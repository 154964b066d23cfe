package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"lawspark-go/internal/model"
	"lawspark-go/internal/service"
	"lawspark-go/pkg/log"
)

// DocumentHandler 处理文档管理相关的请求。
type DocumentHandler struct {
	documentService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Upload 接收 multipart 表单：file 字段为原始文件，其余字段为元数据。
func (h *DocumentHandler) Upload(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "cannot read uploaded file")
		return
	}
	defer file.Close()

	meta := model.CreateTextDocumentRequest{
		Title:        c.PostForm("title"),
		Description:  c.PostForm("description"),
		DocumentType: c.PostForm("documentType"),
		Jurisdiction: c.PostForm("jurisdiction"),
		Language:     c.PostForm("language"),
		Source:       c.PostForm("source"),
		DocumentDate: c.PostForm("documentDate"),
		Categories:   splitCategories(c.PostFormArray("categories")),
	}
	if meta.Title == "" {
		meta.Title = fileHeader.Filename
	}
	log.Infof("[DocumentHandler] 收到上传请求, file=%s, size=%d", fileHeader.Filename, fileHeader.Size)

	doc, err := h.documentService.Upload(c.Request.Context(), requester, service.UploadInput{
		Meta:        meta,
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		File:        file,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, doc)
}

// splitCategories 同时支持重复字段和逗号分隔。
func splitCategories(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (h *DocumentHandler) CreateText(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}
	var req model.CreateTextDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "title and content are required")
		return
	}
	doc, err := h.documentService.CreateFromText(c.Request.Context(), requester, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, doc)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.documentService.Get(c.Request.Context(), requester, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}
	page, size := pageParams(c)
	res, err := h.documentService.List(c.Request.Context(), requester, page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.documentService.Delete(c.Request.Context(), requester, id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

func (h *DocumentHandler) Download(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	info, err := h.documentService.DownloadURL(c.Request.Context(), requester, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, info)
}

func (h *DocumentHandler) Analyze(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	res, err := h.documentService.Analyze(c.Request.Context(), requester, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *DocumentHandler) Anonymize(c *gin.Context) {
	requester, ok := currentRequester(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.documentService.Anonymize(c.Request.Context(), requester, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, doc)
}
