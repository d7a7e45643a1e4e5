package config

import (
	"os"

	"github.com/charmbracelet/log"
)

// SetupLogger 按配置设置全局日志，生产环境输出 JSON
func SetupLogger(cfg *Config) {
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(true)

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn("未知的日志级别，使用 info", "level", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.IsProduction() {
		log.SetFormatter(log.JSONFormatter)
	} else {
		log.SetFormatter(log.TextFormatter)
	}
}
