package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware 检查用户是否具有管理员权限。
// 此中间件必须在 AuthMiddleware 之后使用。
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requester, ok := CurrentRequester(c)
		if !ok {
			abort(c, http.StatusInternalServerError, "无法获取用户信息")
			return
		}
		if !requester.IsAdmin {
			abort(c, http.StatusForbidden, "权限不足，需要管理员权限")
			return
		}
		c.Next()
	}
}
