package model

import "time"

// Favorite 收藏
type Favorite struct {
	ID        int       `json:"id" db:"id" gorm:"primaryKey"`
	UserID    int       `json:"user_id" db:"user_id" gorm:"not null;uniqueIndex:idx_favorites_user_movie"`
	MovieID   int       `json:"movie_id" db:"movie_id" gorm:"not null;uniqueIndex:idx_favorites_user_movie;index"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Movie     *Movie    `json:"movie,omitempty" gorm:"constraint:OnDelete:CASCADE"`
}

// WatchLater 稍后观看
type WatchLater struct {
	ID      int       `json:"id" db:"id" gorm:"primaryKey"`
	UserID  int       `json:"user_id" db:"user_id" gorm:"not null;uniqueIndex:idx_watch_later_user_movie"`
	MovieID int       `json:"movie_id" db:"movie_id" gorm:"not null;uniqueIndex:idx_watch_later_user_movie;index"`
	AddedAt time.Time `json:"added_at" db:"added_at" gorm:"not null"`
	Movie   *Movie    `json:"movie,omitempty" gorm:"constraint:OnDelete:CASCADE"`
}

func (WatchLater) TableName() string {
	return "watch_later"
}

// PlaybackProgress 播放进度，每个用户每部电影一条
type PlaybackProgress struct {
	ID        int       `json:"id" db:"id" gorm:"primaryKey"`
	UserID    int       `json:"user_id" db:"user_id" gorm:"not null;uniqueIndex:idx_progress_user_movie"`
	MovieID   int       `json:"movie_id" db:"movie_id" gorm:"not null;uniqueIndex:idx_progress_user_movie;index"`
	Position  int       `json:"position" db:"position" gorm:"not null"` // 秒
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	Movie     *Movie    `json:"movie,omitempty" gorm:"constraint:OnDelete:CASCADE"`
}

func (PlaybackProgress) TableName() string {
	return "playback_progress"
}

// Comment 评论
type Comment struct {
	ID        int       `json:"id" db:"id" gorm:"primaryKey"`
	UserID    int       `json:"user_id" db:"user_id" gorm:"not null;index"`
	MovieID   int       `json:"movie_id" db:"movie_id" gorm:"not null;index"`
	Text      string    `json:"text" db:"text" gorm:"not null"`
	Rating    *int      `json:"rating" db:"rating"` // 1-5，可为空
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"index"`
	UserName  string    `json:"user_name" gorm:"-"`
	User      *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Movie     *Movie    `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}
