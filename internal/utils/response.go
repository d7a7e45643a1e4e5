package utils

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/user/papertiger/internal/apperr"
)

// Response 统一API响应结构
type Response struct {
	Code    int                 `json:"code"`              // 状态码
	Message string              `json:"message"`           // 消息
	Data    interface{}         `json:"data"`              // 数据
	Success bool                `json:"success"`           // 是否成功
	Error   string              `json:"error,omitempty"`   // 机器可读错误码
	Details map[string][]string `json:"details,omitempty"` // 字段级校验错误
}

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
		Success: true,
	})
}

// SuccessWithMessage 返回成功响应并自定义消息
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
		Success: true,
	})
}

// Created 返回201
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: message,
		Data:    data,
		Success: true,
	})
}

// Accepted 返回202，用于后台任务
func Accepted(c *gin.Context, message string) {
	c.JSON(http.StatusAccepted, Response{
		Code:    http.StatusAccepted,
		Message: message,
		Success: true,
	})
}

// NoContent 返回204
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error 返回错误响应
func Error(c *gin.Context, code int, errCode, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    nil,
		Success: false,
		Error:   errCode,
	})
}

// ValidationFailed 返回400错误并附带字段错误
func ValidationFailed(c *gin.Context, v *apperr.ValidationError) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    http.StatusBadRequest,
		Message: "invalid input",
		Success: false,
		Error:   "validation_error",
		Details: v.Fields,
	})
}

// Unauthorized 返回401错误
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "authentication credentials were not provided"
	}
	Error(c, http.StatusUnauthorized, "not_authenticated", message)
}

// Forbidden 返回403错误
func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "you do not have permission to perform this action"
	}
	Error(c, http.StatusForbidden, "permission_denied", message)
}

// NotFound 返回404错误
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "not found"
	}
	Error(c, http.StatusNotFound, "not_found", message)
}

// TooManyRequests 返回429错误
func TooManyRequests(c *gin.Context) {
	Error(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
}

// InternalServerError 返回500错误
func InternalServerError(c *gin.Context, message string) {
	if message == "" {
		message = "internal server error"
	}
	Error(c, http.StatusInternalServerError, "internal_error", message)
}

// Fail 把业务错误映射为对应的 HTTP 响应，未知错误只记录日志不暴露细节
func Fail(c *gin.Context, err error) {
	if v, ok := apperr.IsValidation(err); ok {
		ValidationFailed(c, v)
		return
	}

	switch {
	case errors.Is(err, apperr.ErrInvalidCredentials):
		Error(c, http.StatusUnauthorized, "invalid_credentials", apperr.ErrInvalidCredentials.Error())
	case errors.Is(err, apperr.ErrAccountNotActive):
		Error(c, http.StatusForbidden, "account_not_active", apperr.ErrAccountNotActive.Error())
	case errors.Is(err, apperr.ErrPermissionDenied):
		Forbidden(c, "")
	case errors.Is(err, apperr.ErrInvalidOrExpiredToken):
		Error(c, http.StatusNotFound, "invalid_or_expired_token", apperr.ErrInvalidOrExpiredToken.Error())
	case errors.Is(err, apperr.ErrNotFound):
		NotFound(c, "")
	case errors.Is(err, apperr.ErrConflict):
		Error(c, http.StatusConflict, "conflict", "already exists")
	case errors.Is(err, apperr.ErrUpstream):
		log.Warn("上游请求失败", "path", c.Request.URL.Path, "err", err)
		Error(c, http.StatusBadGateway, "upstream_error", "upstream data source unavailable")
	default:
		log.Error("请求处理失败", "method", c.Request.Method, "path", c.Request.URL.Path, "err", err)
		InternalServerError(c, "")
	}
}
