package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/user/papertiger/internal/service"
	"github.com/user/papertiger/internal/utils"
)

type importRequest struct {
	Genres   []string `json:"genres" binding:"omitempty,dive,required,max=50"`
	MaxPages int      `json:"max_pages" binding:"omitempty,min=1,max=100"`
}

// ArchiveMovies Internet Archive 热门电影预览
func (h *Handler) ArchiveMovies(c *gin.Context) {
	movies, err := h.Archive.Preview(c.Request.Context())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, movies)
}

// StartImport 后台导入，已有任务在执行时返回 409
func (h *Handler) StartImport(c *gin.Context) {
	var in importRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &in) {
		return
	}

	opts := service.ImportOptions{Genres: in.Genres, MaxPages: in.MaxPages}
	if err := h.Importer.Start(h.bgCtx, opts); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Accepted(c, "import started")
}

// ImportStatus 是否有导入任务在执行
func (h *Handler) ImportStatus(c *gin.Context) {
	utils.Success(c, gin.H{"running": h.Importer.Running()})
}
