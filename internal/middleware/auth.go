// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lawspark-go/internal/service"
	"lawspark-go/pkg/log"
	"lawspark-go/pkg/token"
)

// Gin 上下文中的键。
const (
	ClaimsKey    = "claims"
	UserIDKey    = "userID"
	RequesterKey = "requester"
)

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// token 来自 Authorization: Bearer 头；WebSocket 握手无法设置请求头，允许使用 ?token= 参数。
func AuthMiddleware(verifier *token.Verifier, adminRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := extractToken(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "请求未包含有效的授权信息")
			return
		}

		claims, err := verifier.VerifyToken(tokenString)
		if err != nil {
			log.Warnf("[Auth] token 校验失败, path=%s: %v", c.Request.URL.Path, err)
			abort(c, http.StatusUnauthorized, "无效或已过期的 token")
			return
		}
		// VerifyToken 已经保证 sub 是合法 UUID
		userID, _ := claims.UserID()

		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, userID)
		c.Set(RequesterKey, service.Requester{
			UserID:  userID,
			IsAdmin: adminRole != "" && claims.AppRole() == adminRole,
		})
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, bool) {
	const bearerPrefix = "Bearer "
	if header := c.GetHeader("Authorization"); header != "" {
		if !strings.HasPrefix(header, bearerPrefix) {
			return "", false
		}
		t := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		return t, t != ""
	}
	if websocketUpgrade(c.Request) {
		if t := c.Query("token"); t != "" {
			return t, true
		}
	}
	return "", false
}

func websocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// CurrentRequester 读取 AuthMiddleware 写入的调用方。
func CurrentRequester(c *gin.Context) (service.Requester, bool) {
	v, exists := c.Get(RequesterKey)
	if !exists {
		return service.Requester{}, false
	}
	r, ok := v.(service.Requester)
	return r, ok
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": message, "data": nil})
}
