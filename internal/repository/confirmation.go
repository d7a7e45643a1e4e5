package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/papertiger/internal/model"
	"gorm.io/gorm"
)

type ConfirmationRepository struct {
	db *gorm.DB
}

func NewConfirmationRepository(db *gorm.DB) *ConfirmationRepository {
	return &ConfirmationRepository{db: db}
}

// Create 保存确认令牌
func (r *ConfirmationRepository) Create(ctx context.Context, c *model.EmailConfirmation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// FindByHash 按令牌哈希查找
func (r *ConfirmationRepository) FindByHash(ctx context.Context, hash string) (*model.EmailConfirmation, error) {
	var c model.EmailConfirmation
	err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Consume 标记为已使用，只有第一次调用返回 true
func (r *ConfirmationRepository) Consume(ctx context.Context, id int, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.EmailConfirmation{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeletePending 删除用户所有未使用的令牌
func (r *ConfirmationRepository) DeletePending(ctx context.Context, userID int) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND consumed_at IS NULL", userID).
		Delete(&model.EmailConfirmation{}).Error
}

// DeleteExpired 清理过期且未使用的令牌
func (r *ConfirmationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ? AND consumed_at IS NULL", now).
		Delete(&model.EmailConfirmation{})
	return res.RowsAffected, res.Error
}
