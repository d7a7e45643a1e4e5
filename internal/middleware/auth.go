package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/user/papertiger/internal/auth"
	"github.com/user/papertiger/internal/model"
	"github.com/user/papertiger/internal/utils"
)

const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
	ctxRole     = "role"
)

// RequireAuth 必须登录中间件
func RequireAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := extractClaims(c, tokens)
		if err != nil {
			utils.Unauthorized(c, "")
			c.Abort()
			return
		}

		// 将用户信息存入上下文
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth 可选登录中间件（不强制要求登录）
func OptionalAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := extractClaims(c, tokens); err == nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxUsername, claims.Username)
	c.Set(ctxRole, claims.Role)
}

// extractClaims 从 Authorization Header 中提取访问令牌
func extractClaims(c *gin.Context, tokens *auth.TokenManager) (*auth.Claims, error) {
	authHeader := c.GetHeader("Authorization")
	scheme, tokenString, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenString) == "" {
		return nil, jwt.ErrTokenMalformed
	}
	return tokens.Parse(strings.TrimSpace(tokenString), auth.AccessToken)
}

// GetUserID 从上下文获取用户 ID（未登录返回 0）
func GetUserID(c *gin.Context) int {
	if userID, exists := c.Get(ctxUserID); exists {
		return userID.(int)
	}
	return 0
}

// GetRole 从上下文获取角色（未登录返回空）
func GetRole(c *gin.Context) model.Role {
	if role, exists := c.Get(ctxRole); exists {
		return role.(model.Role)
	}
	return ""
}
