package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/user/papertiger/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB 初始化数据库连接
func InitDB(databaseURL string) (*gorm.DB, error) {
	pgCfg, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("解析数据库地址失败: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pgCfg)

	// 设置连接池
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("数据库 ping 失败: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), GormConfig())
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}
	return db, nil
}

// GormConfig 共享的 gorm 配置，重复键统一翻译为 gorm.ErrDuplicatedKey
func GormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger: logger.New(
			log.StandardLog(log.StandardLogOptions{ForceLevel: log.WarnLevel}),
			logger.Config{
				SlowThreshold:             1500 * time.Millisecond,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	}
}

// AutoMigrate 按模型建表，仅用于测试和本地开发，生产走 migrations
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.EmailConfirmation{},
		&model.Movie{},
		&model.Favorite{},
		&model.WatchLater{},
		&model.PlaybackProgress{},
		&model.Comment{},
	)
}

// Repositories 仓库集合
type Repositories struct {
	DB           *gorm.DB
	User         *UserRepository
	Confirmation *ConfirmationRepository
	Movie        *MovieRepository
	Favorite     *FavoriteRepository
	WatchLater   *WatchLaterRepository
	Progress     *ProgressRepository
	Comment      *CommentRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:           db,
		User:         NewUserRepository(db),
		Confirmation: NewConfirmationRepository(db),
		Movie:        NewMovieRepository(db),
		Favorite:     NewFavoriteRepository(db),
		WatchLater:   NewWatchLaterRepository(db),
		Progress:     NewProgressRepository(db),
		Comment:      NewCommentRepository(db),
	}
}

// Transaction 在同一个事务中执行 fn，fn 拿到的仓库集合都绑定在事务上
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
