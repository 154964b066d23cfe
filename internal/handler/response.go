// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lawspark-go/internal/middleware"
	"lawspark-go/internal/service"
	"lawspark-go/pkg/apperrors"
	"lawspark-go/pkg/log"
)

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

// respondError 把错误映射为 {"code","message","data"} 信封。500 不向调用方暴露细节。
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Errorf("[Handler] %s %s 内部错误: %v", c.Request.Method, c.FullPath(), err)
		message = "服务器内部错误"
	}
	c.JSON(status, gin.H{"code": status, "message": message, "data": nil})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": message, "data": nil})
}

func currentRequester(c *gin.Context) (service.Requester, bool) {
	r, ok := middleware.CurrentRequester(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息", "data": nil})
	}
	return r, ok
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	return page, size
}
