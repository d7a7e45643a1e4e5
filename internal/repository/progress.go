package repository

import (
	"context"
	"time"

	"github.com/user/papertiger/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Upsert 更新或插入播放进度，返回库里最终保存的记录
func (r *ProgressRepository) Upsert(ctx context.Context, userID, movieID, position int) (*model.PlaybackProgress, error) {
	p := &model.PlaybackProgress{
		UserID:    userID,
		MovieID:   movieID,
		Position:  position,
		UpdatedAt: time.Now(),
	}
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"position", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return nil, err
	}

	var stored model.PlaybackProgress
	if err := db.Where("user_id = ? AND movie_id = ?", userID, movieID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListByUser 获取用户播放进度，最近更新的在前
func (r *ProgressRepository) ListByUser(ctx context.Context, userID int) ([]*model.PlaybackProgress, error) {
	var items []*model.PlaybackProgress
	err := r.db.WithContext(ctx).Preload("Movie").
		Where("user_id = ?", userID).
		Order("updated_at DESC, id DESC").
		Find(&items).Error
	return items, err
}
