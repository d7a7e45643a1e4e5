package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/papertiger/internal/apperr"
	"github.com/user/papertiger/internal/model"
	"github.com/user/papertiger/internal/service"
	"github.com/user/papertiger/internal/utils"
)

// ListMovies 电影列表，支持 search / genre / is_featured / ordering
func (h *Handler) ListMovies(c *gin.Context) {
	filter := model.MovieFilter{
		Search:   c.Query("search"),
		Genre:    c.Query("genre"),
		Ordering: c.Query("ordering"),
	}
	if raw := c.Query("is_featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			utils.ValidationFailed(c, apperr.NewValidationError("is_featured", "Must be a valid boolean."))
			return
		}
		filter.IsFeatured = &featured
	}

	movies, err := h.Catalog.ListMovies(c.Request.Context(), filter)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, movies)
}

// HeroMovies 首页大图
func (h *Handler) HeroMovies(c *gin.Context) {
	movies, err := h.Catalog.HeroMovies(c.Request.Context())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, movies)
}

// GetMovie 按 ID 或 slug 获取
func (h *Handler) GetMovie(c *gin.Context) {
	movie, err := h.Catalog.GetMovie(c.Request.Context(), c.Param("ref"))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, movie)
}

// CreateMovie 新建电影
func (h *Handler) CreateMovie(c *gin.Context) {
	var in service.MovieInput
	if !bindJSON(c, &in) {
		return
	}

	movie, err := h.Catalog.CreateMovie(c.Request.Context(), in)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "success", movie)
}

// ReplaceMovie PUT 整体更新
func (h *Handler) ReplaceMovie(c *gin.Context) {
	var in service.MovieInput
	if !bindJSON(c, &in) {
		return
	}

	movie, err := h.Catalog.ReplaceMovie(c.Request.Context(), c.Param("ref"), in)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, movie)
}

// PatchMovie PATCH 部分更新
func (h *Handler) PatchMovie(c *gin.Context) {
	var in service.MoviePatch
	if !bindJSON(c, &in) {
		return
	}

	movie, err := h.Catalog.PatchMovie(c.Request.Context(), c.Param("ref"), in)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, movie)
}

// DeleteMovie 删除电影
func (h *Handler) DeleteMovie(c *gin.Context) {
	if err := h.Catalog.DeleteMovie(c.Request.Context(), c.Param("ref")); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.NoContent(c)
}

// IncrementView 播放次数加一，返回新的次数
func (h *Handler) IncrementView(c *gin.Context) {
	views, err := h.Catalog.IncrementViews(c.Request.Context(), c.Param("ref"))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, gin.H{"views": views})
}
