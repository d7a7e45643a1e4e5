package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/user/papertiger/internal/repository"
)

// CleanupService 清理服务
type CleanupService struct {
	repos    *repository.Repositories
	clock    Clock
	interval time.Duration
}

// NewCleanupService 创建清理服务
func NewCleanupService(repos *repository.Repositories, clock Clock) *CleanupService {
	if clock == nil {
		clock = RealClock{}
	}
	return &CleanupService{repos: repos, clock: clock, interval: 24 * time.Hour}
}

// Start 启动定时清理任务，ctx 取消后退出
func (s *CleanupService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)

	go func() {
		defer ticker.Stop()

		// 启动时先运行一次
		s.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce 清理过期且未使用的确认令牌
func (s *CleanupService) RunOnce(ctx context.Context) (int64, error) {
	log.Info("[CleanupService] 开始清理过期数据...")

	affected, err := s.repos.Confirmation.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		log.Error("[CleanupService] 清理过期确认令牌失败", "err", err)
		return 0, err
	}
	log.Info("[CleanupService] 已清理过期确认令牌", "count", affected)
	return affected, nil
}
