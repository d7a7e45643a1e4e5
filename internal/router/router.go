package router

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/user/papertiger/internal/handler"
	"github.com/user/papertiger/internal/middleware"
	"github.com/user/papertiger/internal/utils"
)

// New 创建 gin 引擎并挂载中间件和路由
func New(h *handler.Handler) *gin.Engine {
	if h.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// 校验错误里使用 json 字段名
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		utils.UseJSONFieldNames(v)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	// 启用 gzip，默认压缩级别
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(middleware.CORS(h.Config.AllowedOrigins))
	r.Use(middleware.RateLimit(h.Config.Limiter))

	r.NoRoute(func(c *gin.Context) {
		utils.NotFound(c, "")
	})

	RegisterRoutes(r, h)
	return r
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	read := middleware.Require(middleware.OpRead)
	userWrite := middleware.Require(middleware.OpUserWrite)
	// staff 和管理员操作重新读库里的角色，降级立即生效
	staffWrite := middleware.RequireCurrent(middleware.OpStaffWrite, h.Account.CurrentRole)
	adminWrite := middleware.RequireCurrent(middleware.OpAdminWrite, h.Account.CurrentRole)

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ==================== 账号 ====================
	r.POST("/register", h.Register)
	r.POST("/resend-confirm", h.ResendConfirm)
	r.GET("/confirm-email/:token", h.ConfirmEmail)
	r.POST("/token", h.Token)
	r.POST("/token/refresh", h.RefreshToken)
	r.GET("/profile", middleware.RequireAuth(h.Tokens), h.Profile)

	// 以下路由都可以带令牌，权限由 Require 判断
	api := r.Group("")
	api.Use(middleware.OptionalAuth(h.Tokens))

	// ==================== 电影 ====================
	movies := api.Group("/movies")
	{
		movies.GET("", read, h.ListMovies)
		movies.POST("", adminWrite, h.CreateMovie)
		movies.GET("/hero", read, h.HeroMovies)
		movies.GET("/:ref", read, h.GetMovie)
		movies.PUT("/:ref", adminWrite, h.ReplaceMovie)
		movies.PATCH("/:ref", adminWrite, h.PatchMovie)
		movies.DELETE("/:ref", adminWrite, h.DeleteMovie)
		movies.POST("/:ref/increment-view", read, h.IncrementView)
		movies.GET("/:ref/comments", read, h.ListComments)
		movies.POST("/:ref/comments", userWrite, h.AddComment)
	}

	// 作者本人或 staff，作者判断在 service 中完成
	api.DELETE("/comments/:id", userWrite, h.DeleteComment)

	// ==================== 用户互动 ====================
	me := api.Group("")
	me.Use(userWrite)
	{
		me.GET("/favorites", h.ListFavorites)
		me.POST("/favorites", h.AddFavorite)
		me.DELETE("/favorites/:movie_id", h.RemoveFavorite)

		me.GET("/watchlater", h.ListWatchLater)
		me.POST("/watchlater", h.AddWatchLater)
		me.DELETE("/watchlater/:movie_id", h.RemoveWatchLater)

		me.GET("/progress", h.ListProgress)
		me.POST("/progress", h.ReportProgress)
	}

	// ==================== Internet Archive ====================
	api.GET("/archive/movies", read, h.ArchiveMovies)

	// ==================== 管理 ====================
	admin := api.Group("/admin")
	{
		admin.POST("/import", adminWrite, h.StartImport)
		admin.GET("/import", staffWrite, h.ImportStatus)
	}
}
