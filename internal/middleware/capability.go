package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/user/papertiger/internal/model"
	"github.com/user/papertiger/internal/utils"
)

// Operation 接口操作类型
type Operation string

const (
	OpRead       Operation = "read"        // 公开读取
	OpUserWrite  Operation = "user_write"  // 登录用户写操作
	OpStaffWrite Operation = "staff_write" // 需要 staff
	OpAdminWrite Operation = "admin_write" // 需要管理员
)

// Allowed 根据角色和操作类型判断是否放行，空角色表示未登录
func Allowed(role model.Role, op Operation) bool {
	switch op {
	case OpRead:
		return true
	case OpUserWrite:
		return role.Valid()
	case OpStaffWrite:
		return role.IsStaff()
	case OpAdminWrite:
		return role.IsAdmin()
	default:
		return false
	}
}

// Require 在 handler 之前做权限检查，需要放在 OptionalAuth 或 RequireAuth 之后
func Require(op Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		if Allowed(role, op) {
			c.Next()
			return
		}
		if role == "" {
			utils.Unauthorized(c, "")
		} else {
			utils.Forbidden(c, "")
		}
		c.Abort()
	}
}

// RoleLookup 查询用户当前角色，用户不存在返回空角色
type RoleLookup func(ctx context.Context, userID int) (model.Role, error)

// RequireCurrent 同 Require，但角色以 lookup 查到的为准，不用令牌里的角色
func RequireCurrent(op Operation, lookup RoleLookup) gin.HandlerFunc {
	check := Require(op)
	return func(c *gin.Context) {
		if userID := GetUserID(c); userID != 0 {
			role, err := lookup(c.Request.Context(), userID)
			if err != nil {
				utils.Fail(c, err)
				c.Abort()
				return
			}
			c.Set(ctxRole, role)
		}
		check(c)
	}
}
