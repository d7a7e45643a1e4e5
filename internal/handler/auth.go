package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/user/papertiger/internal/apperr"
	"github.com/user/papertiger/internal/middleware"
	"github.com/user/papertiger/internal/service"
	"github.com/user/papertiger/internal/utils"
)

type resendRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// tokenRequest login 可以是用户名或邮箱，也兼容 username / email 字段
type tokenRequest struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// Register 注册
func (h *Handler) Register(c *gin.Context) {
	var in service.RegisterInput
	if !bindJSON(c, &in) {
		return
	}

	user, err := h.Account.Register(c.Request.Context(), in)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "Verification e-mail sent.", user)
}

// ResendConfirm 重新发送确认邮件，账号是否存在都返回同样的响应
func (h *Handler) ResendConfirm(c *gin.Context) {
	var in resendRequest
	if !bindJSON(c, &in) {
		return
	}

	if err := h.Account.Resend(c.Request.Context(), in.Email); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.SuccessWithMessage(c, service.ResendMessage, nil)
}

// ConfirmEmail 确认邮箱后跳转到登录页
func (h *Handler) ConfirmEmail(c *gin.Context) {
	if _, err := h.Account.Confirm(c.Request.Context(), c.Param("token")); err != nil {
		utils.Fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, h.Config.LoginRedirectURL)
}

// Token 登录，签发访问令牌和刷新令牌
func (h *Handler) Token(c *gin.Context) {
	var in tokenRequest
	if !bindJSON(c, &in) {
		return
	}

	login := strings.TrimSpace(in.Login)
	if login == "" {
		login = strings.TrimSpace(in.Username)
	}
	if login == "" {
		login = strings.TrimSpace(in.Email)
	}
	if login == "" {
		utils.ValidationFailed(c, apperr.NewValidationError("login", "This field is required."))
		return
	}

	pair, err := h.Account.IssueToken(c.Request.Context(), login, in.Password)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, pair)
}

// RefreshToken 刷新访问令牌
func (h *Handler) RefreshToken(c *gin.Context) {
	var in refreshRequest
	if !bindJSON(c, &in) {
		return
	}

	pair, err := h.Account.Refresh(c.Request.Context(), in.Refresh)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, pair)
}

// Profile 当前用户
func (h *Handler) Profile(c *gin.Context) {
	user, err := h.Account.Profile(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
	})
}
