// Package token 校验由托管认证服务（Supabase）签发的 JWT。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims 是 Supabase access token 中我们关心的部分。
type Claims struct {
	Email       string                 `json:"email"`
	Role        string                 `json:"role"`
	AppMetadata map[string]interface{} `json:"app_metadata"`
	jwt.RegisteredClaims
}

// UserID 解析 sub 为用户 ID。
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// AppRole 返回 app_metadata.role，不存在时返回空串。
func (c *Claims) AppRole() string {
	role, _ := c.AppMetadata["role"].(string)
	return role
}

// Verifier 使用 HS256 共享密钥校验 token。
type Verifier struct {
	secretKey []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secretKey: []byte(secret)}
}

// VerifyToken 验证给定的 token 字符串。
// 签名不匹配、已过期或 sub 不是 UUID 时返回错误。
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if len(v.secretKey) == 0 {
		return nil, errors.New("jwt secret is not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// 检查签名方法是否为 HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secretKey, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}
	return claims, nil
}

// Issue 签发一个与 Supabase 格式兼容的 token，供 CLI 与本地联调使用。
func (v *Verifier) Issue(userID uuid.UUID, email, appRole string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:       email,
		Role:        "authenticated",
		AppMetadata: map[string]interface{}{"role": appRole},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secretKey)
}
