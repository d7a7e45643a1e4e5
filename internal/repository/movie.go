package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/user/papertiger/internal/apperr"
	"github.com/user/papertiger/internal/model"
	"github.com/user/papertiger/internal/utils"
	"gorm.io/gorm"
)

const maxSlugAttempts = 5

// 可更新字段，slug 和 views 不在其中
var movieUpdatableColumns = []string{
	"title", "overview", "year", "genre", "video_url", "thumbnail_url",
	"runtime_minutes", "archive_identifier", "is_featured", "is_hero",
	"is_public_domain", "updated_at",
}

var movieOrderClauses = map[string]string{
	"title":  "title ASC, id ASC",
	"-title": "title DESC, id DESC",
	"year":   "year IS NULL, year ASC, id ASC",
	"-year":  "year IS NULL, year DESC, id ASC",
}

type MovieRepository struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// List 按条件查询电影，排序字段在调用前校验
func (r *MovieRepository) List(ctx context.Context, f model.MovieFilter) ([]*model.Movie, error) {
	query := r.db.WithContext(ctx).Model(&model.Movie{})

	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(strings.ToLower(s)) + "%"
		query = query.Where(
			"LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(overview) LIKE ? ESCAPE '\\' OR LOWER(genre) LIKE ? ESCAPE '\\'",
			like, like, like,
		)
	}
	if f.Genre != "" {
		query = query.Where("genre = ?", f.Genre)
	}
	if f.IsFeatured != nil {
		query = query.Where("is_featured = ?", *f.IsFeatured)
	}

	order, ok := movieOrderClauses[f.Ordering]
	if !ok {
		order = movieOrderClauses["title"]
	}

	var movies []*model.Movie
	err := query.Order(order).Find(&movies).Error
	return movies, err
}

// Hero 首页轮播
func (r *MovieRepository) Hero(ctx context.Context) ([]*model.Movie, error) {
	var movies []*model.Movie
	err := r.db.WithContext(ctx).
		Where("is_hero = ?", true).
		Order(movieOrderClauses["-year"]).
		Find(&movies).Error
	return movies, err
}

// FindByID 根据 ID 查找电影
func (r *MovieRepository) FindByID(ctx context.Context, id int) (*model.Movie, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindBySlug 根据 slug 查找电影
func (r *MovieRepository) FindBySlug(ctx context.Context, slug string) (*model.Movie, error) {
	return r.findOne(ctx, "slug = ?", slug)
}

// FindByRef 纯数字先按 ID 查找，找不到再按 slug
func (r *MovieRepository) FindByRef(ctx context.Context, ref string) (*model.Movie, error) {
	if id, err := strconv.Atoi(ref); err == nil {
		movie, err := r.FindByID(ctx, id)
		if err != nil || movie != nil {
			return movie, err
		}
	}
	return r.FindBySlug(ctx, ref)
}

func (r *MovieRepository) findOne(ctx context.Context, query string, args ...interface{}) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.WithContext(ctx).Where(query, args...).First(&movie).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

// Exists 电影是否存在
func (r *MovieRepository) Exists(ctx context.Context, id int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Movie{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// ExistsByTitle 标题是否已存在，忽略大小写
func (r *MovieRepository) ExistsByTitle(ctx context.Context, title string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Movie{}).
		Where("LOWER(title) = ?", strings.ToLower(strings.TrimSpace(title))).
		Count(&count).Error
	return count > 0, err
}

// ArchiveIdentifiers 已导入的 archive.org 标识
func (r *MovieRepository) ArchiveIdentifiers(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Movie{}).
		Where("archive_identifier IS NOT NULL").
		Pluck("archive_identifier", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// Create 创建电影并生成唯一 slug，并发插入撞到唯一索引时换下一个后缀重试
func (r *MovieRepository) Create(ctx context.Context, movie *model.Movie) error {
	base := utils.Slugify(movie.Title)

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		slug, err := r.nextFreeSlug(ctx, base)
		if err != nil {
			return err
		}
		movie.ID = 0
		movie.Slug = slug

		err = r.db.WithContext(ctx).Create(movie).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		if movie.ArchiveIdentifier != nil {
			taken, ferr := r.findOne(ctx, "archive_identifier = ?", *movie.ArchiveIdentifier)
			if ferr != nil {
				return ferr
			}
			if taken != nil {
				return fmt.Errorf("%w: archive identifier %s", apperr.ErrConflict, *movie.ArchiveIdentifier)
			}
		}
	}
	return fmt.Errorf("%w: no free slug for %q", apperr.ErrConflict, base)
}

func (r *MovieRepository) nextFreeSlug(ctx context.Context, base string) (string, error) {
	var taken []string
	err := r.db.WithContext(ctx).Model(&model.Movie{}).
		Where("slug = ? OR slug LIKE ?", base, base+"-%").
		Pluck("slug", &taken).Error
	if err != nil {
		return "", err
	}

	set := make(map[string]struct{}, len(taken))
	for _, s := range taken {
		set[s] = struct{}{}
	}
	if _, ok := set[base]; !ok {
		return base, nil
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if _, ok := set[candidate]; !ok {
			return candidate, nil
		}
	}
}

// Update 保存全部可编辑字段，slug 保持不变
func (r *MovieRepository) Update(ctx context.Context, movie *model.Movie) error {
	res := r.db.WithContext(ctx).Model(movie).Select(movieUpdatableColumns).Updates(movie)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: archive identifier already used", apperr.ErrConflict)
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Delete 删除电影，关联的收藏、评论等由外键级联删除
func (r *MovieRepository) Delete(ctx context.Context, id int) error {
	res := r.db.WithContext(ctx).Delete(&model.Movie{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// IncrementViews 在数据库里原子自增，返回新的播放次数
func (r *MovieRepository) IncrementViews(ctx context.Context, id int) (int, error) {
	var views int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Movie{}).Where("id = ?", id).
			UpdateColumn("views", gorm.Expr("views + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotFound
		}
		return tx.Model(&model.Movie{}).Select("views").Where("id = ?", id).Row().Scan(&views)
	})
	return views, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
