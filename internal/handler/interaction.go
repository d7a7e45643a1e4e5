package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/user/papertiger/internal/middleware"
	"github.com/user/papertiger/internal/service"
	"github.com/user/papertiger/internal/utils"
)

type movieRef struct {
	MovieID int `json:"movie_id" binding:"required,min=1"`
}

type progressRequest struct {
	MovieID  int  `json:"movie_id" binding:"required,min=1"`
	Position *int `json:"position" binding:"required"`
}

// ==================== 收藏 ====================

// ListFavorites 当前用户的收藏
func (h *Handler) ListFavorites(c *gin.Context) {
	items, err := h.Catalog.ListFavorites(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, items)
}

// AddFavorite 添加收藏，已收藏返回 409
func (h *Handler) AddFavorite(c *gin.Context) {
	var in movieRef
	if !bindJSON(c, &in) {
		return
	}

	fav, err := h.Catalog.AddFavorite(c.Request.Context(), middleware.GetUserID(c), in.MovieID)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "success", fav)
}

// RemoveFavorite 取消收藏
func (h *Handler) RemoveFavorite(c *gin.Context) {
	movieID, ok := paramID(c, "movie_id")
	if !ok {
		return
	}
	if err := h.Catalog.RemoveFavorite(c.Request.Context(), middleware.GetUserID(c), movieID); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.NoContent(c)
}

// ==================== 稍后观看 ====================

// ListWatchLater 稍后观看列表
func (h *Handler) ListWatchLater(c *gin.Context) {
	items, err := h.Catalog.ListWatchLater(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, items)
}

// AddWatchLater 加入稍后观看
func (h *Handler) AddWatchLater(c *gin.Context) {
	var in movieRef
	if !bindJSON(c, &in) {
		return
	}

	item, err := h.Catalog.AddWatchLater(c.Request.Context(), middleware.GetUserID(c), in.MovieID)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "success", item)
}

// RemoveWatchLater 移出稍后观看
func (h *Handler) RemoveWatchLater(c *gin.Context) {
	movieID, ok := paramID(c, "movie_id")
	if !ok {
		return
	}
	if err := h.Catalog.RemoveWatchLater(c.Request.Context(), middleware.GetUserID(c), movieID); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.NoContent(c)
}

// ==================== 播放进度 ====================

// ListProgress 播放进度
func (h *Handler) ListProgress(c *gin.Context) {
	items, err := h.Catalog.ListProgress(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, items)
}

// ReportProgress 上报播放位置，同一部电影只保留最新一条
func (h *Handler) ReportProgress(c *gin.Context) {
	var in progressRequest
	if !bindJSON(c, &in) {
		return
	}

	p, err := h.Catalog.ReportProgress(c.Request.Context(), middleware.GetUserID(c), in.MovieID, *in.Position)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, gin.H{"movie_id": p.MovieID, "position": p.Position})
}

// ==================== 评论 ====================

// ListComments 电影评论
func (h *Handler) ListComments(c *gin.Context) {
	comments, err := h.Catalog.ListComments(c.Request.Context(), c.Param("ref"))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, comments)
}

// AddComment 发表评论，作者取自令牌
func (h *Handler) AddComment(c *gin.Context) {
	var in service.CommentInput
	if !bindJSON(c, &in) {
		return
	}

	comment, err := h.Catalog.AddComment(c.Request.Context(), middleware.GetUserID(c), c.Param("ref"), in)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "success", comment)
}

// DeleteComment 删除评论，仅作者或 staff
func (h *Handler) DeleteComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.Catalog.DeleteComment(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.NoContent(c)
}
