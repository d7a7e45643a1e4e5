package repository

import (
	"context"
	"time"

	"github.com/user/papertiger/internal/apperr"
	"github.com/user/papertiger/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FavoriteRepository struct {
	db *gorm.DB
}

func NewFavoriteRepository(db *gorm.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Add 添加收藏，唯一索引决定并发结果，已存在返回 ErrConflict
func (r *FavoriteRepository) Add(ctx context.Context, userID, movieID int) (*model.Favorite, error) {
	favorite := &model.Favorite{
		UserID:    userID,
		MovieID:   movieID,
		CreatedAt: time.Now(),
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(favorite)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ErrConflict
	}
	return favorite, nil
}

// Remove 取消收藏
func (r *FavoriteRepository) Remove(ctx context.Context, userID, movieID int) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND movie_id = ?", userID, movieID).Delete(&model.Favorite{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListByUser 获取用户收藏列表，附带电影信息
func (r *FavoriteRepository) ListByUser(ctx context.Context, userID int) ([]*model.Favorite, error) {
	var favorites []*model.Favorite
	err := r.db.WithContext(ctx).Preload("Movie").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&favorites).Error
	return favorites, err
}
