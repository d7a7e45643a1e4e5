package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/user/papertiger/internal/config"
	"github.com/user/papertiger/internal/handler"
	"github.com/user/papertiger/internal/mailer"
	"github.com/user/papertiger/internal/repository"
	"github.com/user/papertiger/internal/repository/migrations"
	"github.com/user/papertiger/internal/router"
	"github.com/user/papertiger/internal/service"
)

func main() {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Info("未找到 .env 文件，使用系统环境变量")
	}

	// 加载配置
	cfg := config.Load()
	config.SetupLogger(cfg)

	// 数据库迁移
	migrateDB, err := migrations.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("迁移连接失败", "err", err)
	}
	if err := migrations.Up(migrateDB); err != nil {
		log.Fatal("数据库迁移失败", "err", err)
	}
	migrateDB.Close()

	// 初始化数据库
	db, err := repository.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("数据库连接失败", "err", err)
	}

	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	// 初始化仓库
	repos := repository.NewRepositories(db)

	// 收到信号后取消后台任务
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化 Handler
	m := mailer.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Sender)
	h := handler.NewHandler(ctx, repos, cfg, m)

	// 启动定时清理任务
	cleanupSvc := service.NewCleanupService(repos, service.RealClock{})
	cleanupSvc.Start(ctx)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router.New(h),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// 在 goroutine 中启动服务器，这样我们就可以监听信号
	go func() {
		log.Info("服务器启动", "addr", "http://localhost:"+cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("服务器启动失败", "err", err)
			os.Exit(1)
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	<-ctx.Done()
	log.Info("正在关闭服务器...")

	// 10 秒超时上下文用于关闭过程
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("服务器强制关闭", "err", err)
	}

	// 等待邮件和导入任务结束
	h.Wait()
	log.Info("服务器已退出")
}
