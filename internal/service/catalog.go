package service

import (
	"context"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/user/papertiger/internal/apperr"
	"github.com/user/papertiger/internal/model"
	"github.com/user/papertiger/internal/repository"
	"github.com/user/papertiger/internal/utils"
)

// MovieInput 创建和整体更新电影
type MovieInput struct {
	Title             string  `json:"title" binding:"required,max=500"`
	Overview          string  `json:"overview"`
	Year              *int    `json:"year" binding:"omitempty,min=1870,max=2100"`
	Genre             string  `json:"genre" binding:"max=150"`
	VideoURL          string  `json:"video_url" binding:"required,url,max=500"`
	ThumbnailURL      string  `json:"thumbnail_url" binding:"omitempty,url,max=500"`
	RuntimeMinutes    *int    `json:"runtime_minutes" binding:"omitempty,min=1"`
	ArchiveIdentifier *string `json:"archive_identifier" binding:"omitempty,max=600"`
	IsFeatured        bool    `json:"is_featured"`
	IsHero            bool    `json:"is_hero"`
	IsPublicDomain    *bool   `json:"is_public_domain"`
}

// MoviePatch 部分更新，nil 表示不修改
type MoviePatch struct {
	Title             *string `json:"title" binding:"omitempty,max=500"`
	Overview          *string `json:"overview"`
	Year              *int    `json:"year" binding:"omitempty,min=1870,max=2100"`
	Genre             *string `json:"genre" binding:"omitempty,max=150"`
	VideoURL          *string `json:"video_url" binding:"omitempty,url,max=500"`
	ThumbnailURL      *string `json:"thumbnail_url" binding:"omitempty,url,max=500"`
	RuntimeMinutes    *int    `json:"runtime_minutes" binding:"omitempty,min=1"`
	ArchiveIdentifier *string `json:"archive_identifier" binding:"omitempty,max=600"`
	IsFeatured        *bool   `json:"is_featured"`
	IsHero            *bool   `json:"is_hero"`
	IsPublicDomain    *bool   `json:"is_public_domain"`
}

// CommentInput 发表评论
type CommentInput struct {
	Text   string `json:"text" binding:"required,max=2000"`
	Rating *int   `json:"rating" binding:"omitempty,min=1,max=5"`
}

// CatalogService 电影目录和用户互动
type CatalogService struct {
	repos    *repository.Repositories
	validate *validator.Validate
}

// NewCatalogService 创建目录服务
func NewCatalogService(repos *repository.Repositories) *CatalogService {
	return &CatalogService{
		repos:    repos,
		validate: utils.NewValidator(),
	}
}

// ListMovies 搜索、筛选和排序
func (s *CatalogService) ListMovies(ctx context.Context, f model.MovieFilter) ([]*model.Movie, error) {
	if f.Ordering == "" {
		f.Ordering = "title"
	}
	if !slices.Contains(model.MovieOrderings, f.Ordering) {
		return nil, apperr.NewValidationError("ordering", "Must be one of: "+strings.Join(model.MovieOrderings, ", ")+".")
	}
	return s.repos.Movie.List(ctx, f)
}

// HeroMovies 首页轮播
func (s *CatalogService) HeroMovies(ctx context.Context) ([]*model.Movie, error) {
	return s.repos.Movie.Hero(ctx)
}

// GetMovie 按 ID 或 slug 获取电影
func (s *CatalogService) GetMovie(ctx context.Context, ref string) (*model.Movie, error) {
	movie, err := s.repos.Movie.FindByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if movie == nil {
		return nil, apperr.ErrNotFound
	}
	return movie, nil
}

// CreateMovie 新建电影，slug 由标题生成
func (s *CatalogService) CreateMovie(ctx context.Context, in MovieInput) (*model.Movie, error) {
	if err := s.validateMovie(in); err != nil {
		return nil, err
	}
	movie := &model.Movie{IsPublicDomain: true}
	applyMovieInput(movie, in)
	if err := s.repos.Movie.Create(ctx, movie); err != nil {
		return nil, err
	}
	return movie, nil
}

// ReplaceMovie 整体更新（PUT）
func (s *CatalogService) ReplaceMovie(ctx context.Context, ref string, in MovieInput) (*model.Movie, error) {
	if err := s.validateMovie(in); err != nil {
		return nil, err
	}
	movie, err := s.GetMovie(ctx, ref)
	if err != nil {
		return nil, err
	}
	movie.IsPublicDomain = true
	applyMovieInput(movie, in)
	if err := s.repos.Movie.Update(ctx, movie); err != nil {
		return nil, err
	}
	return movie, nil
}

// PatchMovie 部分更新（PATCH）
func (s *CatalogService) PatchMovie(ctx context.Context, ref string, p MoviePatch) (*model.Movie, error) {
	verr := &apperr.ValidationError{}
	if err := s.validate.Struct(p); err != nil {
		verr = utils.ToValidationError(err)
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		verr.Add("title", "This field may not be blank.")
	}
	if p.VideoURL != nil && strings.TrimSpace(*p.VideoURL) == "" {
		verr.Add("video_url", "This field may not be blank.")
	}
	if !verr.Empty() {
		return nil, verr
	}

	movie, err := s.GetMovie(ctx, ref)
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		movie.Title = strings.TrimSpace(*p.Title)
	}
	if p.Overview != nil {
		movie.Overview = *p.Overview
	}
	if p.Year != nil {
		movie.Year = p.Year
	}
	if p.Genre != nil {
		movie.Genre = *p.Genre
	}
	if p.VideoURL != nil {
		movie.VideoURL = *p.VideoURL
	}
	if p.ThumbnailURL != nil {
		movie.ThumbnailURL = *p.ThumbnailURL
	}
	if p.RuntimeMinutes != nil {
		movie.RuntimeMinutes = p.RuntimeMinutes
	}
	if p.ArchiveIdentifier != nil {
		movie.ArchiveIdentifier = nilIfBlank(*p.ArchiveIdentifier)
	}
	if p.IsFeatured != nil {
		movie.IsFeatured = *p.IsFeatured
	}
	if p.IsHero != nil {
		movie.IsHero = *p.IsHero
	}
	if p.IsPublicDomain != nil {
		movie.IsPublicDomain = *p.IsPublicDomain
	}

	if err := s.repos.Movie.Update(ctx, movie); err != nil {
		return nil, err
	}
	return movie, nil
}

// DeleteMovie 删除电影
func (s *CatalogService) DeleteMovie(ctx context.Context, ref string) error {
	movie, err := s.GetMovie(ctx, ref)
	if err != nil {
		return err
	}
	return s.repos.Movie.Delete(ctx, movie.ID)
}

// IncrementViews 播放次数加一，返回新值
func (s *CatalogService) IncrementViews(ctx context.Context, ref string) (int, error) {
	movie, err := s.GetMovie(ctx, ref)
	if err != nil {
		return 0, err
	}
	return s.repos.Movie.IncrementViews(ctx, movie.ID)
}

func (s *CatalogService) validateMovie(in MovieInput) error {
	verr := &apperr.ValidationError{}
	if err := s.validate.Struct(in); err != nil {
		verr = utils.ToValidationError(err)
	}
	if _, ok := verr.Fields["title"]; !ok && strings.TrimSpace(in.Title) == "" {
		verr.Add("title", "This field may not be blank.")
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

func applyMovieInput(movie *model.Movie, in MovieInput) {
	movie.Title = strings.TrimSpace(in.Title)
	movie.Overview = in.Overview
	movie.Year = in.Year
	movie.Genre = in.Genre
	movie.VideoURL = in.VideoURL
	movie.ThumbnailURL = in.ThumbnailURL
	movie.RuntimeMinutes = in.RuntimeMinutes
	movie.IsFeatured = in.IsFeatured
	movie.IsHero = in.IsHero
	movie.ArchiveIdentifier = nil
	if in.ArchiveIdentifier != nil {
		movie.ArchiveIdentifier = nilIfBlank(*in.ArchiveIdentifier)
	}
	if in.IsPublicDomain != nil {
		movie.IsPublicDomain = *in.IsPublicDomain
	}
}

func nilIfBlank(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// requireMovie 确认电影存在
func (s *CatalogService) requireMovie(ctx context.Context, movieID int) error {
	ok, err := s.repos.Movie.Exists(ctx, movieID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotFound
	}
	return nil
}

// ListFavorites 当前用户的收藏
func (s *CatalogService) ListFavorites(ctx context.Context, userID int) ([]*model.Favorite, error) {
	return s.repos.Favorite.ListByUser(ctx, userID)
}

// AddFavorite 添加收藏，重复添加返回 ErrConflict
func (s *CatalogService) AddFavorite(ctx context.Context, userID, movieID int) (*model.Favorite, error) {
	if err := s.requireMovie(ctx, movieID); err != nil {
		return nil, err
	}
	return s.repos.Favorite.Add(ctx, userID, movieID)
}

// RemoveFavorite 取消收藏
func (s *CatalogService) RemoveFavorite(ctx context.Context, userID, movieID int) error {
	return s.repos.Favorite.Remove(ctx, userID, movieID)
}

// ListWatchLater 稍后观看列表
func (s *CatalogService) ListWatchLater(ctx context.Context, userID int) ([]*model.WatchLater, error) {
	return s.repos.WatchLater.ListByUser(ctx, userID)
}

// AddWatchLater 加入稍后观看
func (s *CatalogService) AddWatchLater(ctx context.Context, userID, movieID int) (*model.WatchLater, error) {
	if err := s.requireMovie(ctx, movieID); err != nil {
		return nil, err
	}
	return s.repos.WatchLater.Add(ctx, userID, movieID)
}

// RemoveWatchLater 移出稍后观看
func (s *CatalogService) RemoveWatchLater(ctx context.Context, userID, movieID int) error {
	return s.repos.WatchLater.Remove(ctx, userID, movieID)
}

// ListProgress 播放进度列表
func (s *CatalogService) ListProgress(ctx context.Context, userID int) ([]*model.PlaybackProgress, error) {
	return s.repos.Progress.ListByUser(ctx, userID)
}

// ReportProgress 上报播放位置（秒），同一用户同一电影只保留一条
func (s *CatalogService) ReportProgress(ctx context.Context, userID, movieID, position int) (*model.PlaybackProgress, error) {
	if position < 0 {
		return nil, apperr.NewValidationError("position", "Ensure this value is greater than or equal to 0.")
	}
	if err := s.requireMovie(ctx, movieID); err != nil {
		return nil, err
	}
	return s.repos.Progress.Upsert(ctx, userID, movieID, position)
}

// ListComments 电影评论
func (s *CatalogService) ListComments(ctx context.Context, ref string) ([]*model.Comment, error) {
	movie, err := s.GetMovie(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.repos.Comment.ListByMovie(ctx, movie.ID)
}

// AddComment 发表评论，作者来自登录身份
func (s *CatalogService) AddComment(ctx context.Context, userID int, ref string, in CommentInput) (*model.Comment, error) {
	in.Text = strings.TrimSpace(in.Text)
	if err := s.validate.Struct(in); err != nil {
		return nil, utils.ToValidationError(err)
	}

	movie, err := s.GetMovie(ctx, ref)
	if err != nil {
		return nil, err
	}
	c := &model.Comment{
		UserID:  userID,
		MovieID: movie.ID,
		Text:    in.Text,
		Rating:  in.Rating,
	}
	if err := s.repos.Comment.Create(ctx, c); err != nil {
		return nil, err
	}
	return s.repos.Comment.FindByID(ctx, c.ID)
}

// DeleteComment 只有作者或 staff 可以删除，角色以库中记录为准
func (s *CatalogService) DeleteComment(ctx context.Context, callerID, commentID int) error {
	c, err := s.repos.Comment.FindByID(ctx, commentID)
	if err != nil {
		return err
	}
	if c == nil {
		return apperr.ErrNotFound
	}
	if c.UserID != callerID {
		user, err := s.repos.User.FindByID(ctx, callerID)
		if err != nil {
			return err
		}
		if user == nil || !user.Role.IsStaff() {
			return apperr.ErrPermissionDenied
		}
	}
	return s.repos.Comment.Delete(ctx, commentID)
}
