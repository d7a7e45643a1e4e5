package model

import (
	"time"
)

// Movie 电影模型
type Movie struct {
	ID                int       `json:"id" db:"id" gorm:"primaryKey"`
	Title             string    `json:"title" db:"title" gorm:"size:500;not null;index"`
	Slug              string    `json:"slug" db:"slug" gorm:"size:520;uniqueIndex;not null"`
	Overview          string    `json:"overview" db:"overview"`
	Year              *int      `json:"year" db:"year" gorm:"index"`
	Genre             string    `json:"genre" db:"genre" gorm:"size:150;index"`
	VideoURL          string    `json:"video_url" db:"video_url" gorm:"size:500;not null"`
	ThumbnailURL      string    `json:"thumbnail_url" db:"thumbnail_url" gorm:"size:500"`
	RuntimeMinutes    *int      `json:"runtime_minutes" db:"runtime_minutes"`
	ArchiveIdentifier *string   `json:"archive_identifier" db:"archive_identifier" gorm:"size:600;uniqueIndex"`
	IsFeatured        bool      `json:"is_featured" db:"is_featured" gorm:"not null;index"`
	IsHero            bool      `json:"is_hero" db:"is_hero" gorm:"not null;index"`
	IsPublicDomain    bool      `json:"is_public_domain" db:"is_public_domain" gorm:"not null"`
	Views             int       `json:"views" db:"views" gorm:"not null"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// MovieFilter 列表查询条件
type MovieFilter struct {
	Search     string
	Genre      string
	IsFeatured *bool
	Ordering   string
}

// MovieOrderings 允许的排序字段
var MovieOrderings = []string{"title", "-title", "year", "-year"}
