package repository

import (
	"context"
	"errors"

	"github.com/user/papertiger/internal/apperr"
	"github.com/user/papertiger/internal/model"
	"gorm.io/gorm"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create 发表评论
func (r *CommentRepository) Create(ctx context.Context, c *model.Comment) error {
	return r.db.WithContext(ctx).Omit("User", "Movie").Create(c).Error
}

// FindByID 根据 ID 查找评论
func (r *CommentRepository) FindByID(ctx context.Context, id int) (*model.Comment, error) {
	var c model.Comment
	err := r.db.WithContext(ctx).Preload("User").First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fillUserName(&c)
	return &c, nil
}

// ListByMovie 电影下的评论，最新的在前
func (r *CommentRepository) ListByMovie(ctx context.Context, movieID int) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := r.db.WithContext(ctx).Preload("User").
		Where("movie_id = ?", movieID).
		Order("created_at DESC, id DESC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		fillUserName(c)
	}
	return comments, nil
}

// Delete 删除评论
func (r *CommentRepository) Delete(ctx context.Context, id int) error {
	res := r.db.WithContext(ctx).Delete(&model.Comment{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func fillUserName(c *model.Comment) {
	if c.User != nil {
		c.UserName = c.User.Username
	}
}
