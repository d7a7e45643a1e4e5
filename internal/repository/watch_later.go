package repository

import (
	"context"
	"time"

	"github.com/user/papertiger/internal/apperr"
	"github.com/user/papertiger/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WatchLaterRepository struct {
	db *gorm.DB
}

func NewWatchLaterRepository(db *gorm.DB) *WatchLaterRepository {
	return &WatchLaterRepository{db: db}
}

// Add 加入稍后观看，已存在返回 ErrConflict
func (r *WatchLaterRepository) Add(ctx context.Context, userID, movieID int) (*model.WatchLater, error) {
	item := &model.WatchLater{
		UserID:  userID,
		MovieID: movieID,
		AddedAt: time.Now(),
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(item)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ErrConflict
	}
	return item, nil
}

// Remove 移出稍后观看
func (r *WatchLaterRepository) Remove(ctx context.Context, userID, movieID int) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND movie_id = ?", userID, movieID).Delete(&model.WatchLater{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListByUser 最新加入的排在前面
func (r *WatchLaterRepository) ListByUser(ctx context.Context, userID int) ([]*model.WatchLater, error) {
	var items []*model.WatchLater
	err := r.db.WithContext(ctx).Preload("Movie").
		Where("user_id = ?", userID).
		Order("added_at DESC, id DESC").
		Find(&items).Error
	return items, err
}
