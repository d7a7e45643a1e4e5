package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/papertiger/internal/auth"
	"github.com/user/papertiger/internal/config"
	"github.com/user/papertiger/internal/mailer"
	"github.com/user/papertiger/internal/repository"
	"github.com/user/papertiger/internal/service"
	"github.com/user/papertiger/internal/utils"
)

// Handler HTTP 处理器
type Handler struct {
	Config   *config.Config
	Tokens   *auth.TokenManager
	Account  *service.AccountService
	Catalog  *service.CatalogService
	Archive  *service.ArchiveClient
	Importer *service.Importer

	// 后台任务使用的上下文，服务关闭时取消
	bgCtx context.Context
}

// NewHandler 创建处理器
func NewHandler(ctx context.Context, repos *repository.Repositories, cfg *config.Config, m mailer.Mailer) *Handler {
	tokens := auth.NewTokenManager(cfg.AppSecret, cfg.JWTExpiry, cfg.RefreshExpiry)

	// 账号服务
	account := service.NewAccountService(repos, m, tokens, service.RealClock{}, service.AccountConfig{
		SiteName:        cfg.SiteName,
		SiteURL:         cfg.SiteUrl,
		ConfirmationTTL: cfg.ConfirmationTTL,
	})

	// Internet Archive 客户端
	archive := service.NewArchiveClient(utils.NewHTTPClient(nil), cfg.ArchiveBaseURL)

	return &Handler{
		Config:   cfg,
		Tokens:   tokens,
		Account:  account,
		Catalog:  service.NewCatalogService(repos),
		Archive:  archive,
		Importer: service.NewImporter(repos, archive),
		bgCtx:    ctx,
	}
}

// Wait 等待后台邮件和导入任务结束
func (h *Handler) Wait() {
	h.Account.Wait()
	h.Importer.Wait()
}

// bindJSON 解析请求体，失败时直接写 400
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		utils.ValidationFailed(c, utils.ToValidationError(err))
		return false
	}
	return true
}

// paramID 解析路径中的数字 ID，非法 ID 按不存在处理
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		utils.NotFound(c, "")
		return 0, false
	}
	return id, true
}
