// Package apperr 定义跨层共享的业务错误，handler 统一映射为 HTTP 状态码
package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrAccountNotActive      = errors.New("account is not active, please confirm your email")
	ErrInvalidCredentials    = errors.New("no account found with the given credentials")
	ErrInvalidOrExpiredToken = errors.New("confirmation link invalid or expired")
	ErrUpstream              = errors.New("upstream request failed")
)

// ValidationError 输入校验失败，Fields 记录每个字段的全部失败原因
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError 创建只包含一个字段错误的 ValidationError
func NewValidationError(field string, messages ...string) *ValidationError {
	v := &ValidationError{Fields: map[string][]string{}}
	for _, m := range messages {
		v.Add(field, m)
	}
	return v
}

// Add 追加字段错误
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Empty 没有任何字段错误
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidation 判断 err 链中是否有 ValidationError
func IsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
