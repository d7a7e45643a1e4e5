package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const defaultSecret = "your-secret-key-change-in-production"

// Config 应用配置
type Config struct {
	Env              string
	AppSecret        string
	DatabaseURL      string
	JWTExpiry        time.Duration
	RefreshExpiry    time.Duration
	ConfirmationTTL  time.Duration
	Port             string
	SiteName         string
	SiteUrl          string
	LoginRedirectURL string
	AllowedOrigins   []string
	LogLevel         string
	ArchiveBaseURL   string

	SMTP    SMTPConfig
	Limiter LimiterConfig
}

// SMTPConfig 邮件发送配置
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
}

// LimiterConfig 按 IP 限流配置
type LimiterConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// Load 加载配置
func Load() *Config {
	expiryHours := getEnvInt("JWT_EXPIRY_HOURS", 8)
	refreshHours := getEnvInt("JWT_REFRESH_HOURS", 24)
	confirmDays := getEnvInt("EMAIL_CONFIRMATION_DAYS", 3)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbUser := getEnv("DB_USER", "postgres")
		dbPass := getEnv("DB_PASSWORD", "postgres")
		dbHost := getEnv("DB_HOST", "localhost")
		dbPort := getEnv("DB_PORT", "5432")
		dbName := getEnv("DB_NAME", "papertiger")
		dbSSL := getEnv("DB_SSLMODE", "disable")

		dbURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbUser, dbPass, dbHost, dbPort, dbName, dbSSL)
	}

	env := getEnv("APP_ENV", "development")
	appSecret := getEnv("APP_SECRET", getEnv("JWT_SECRET", defaultSecret))
	if env == "production" && appSecret == defaultSecret {
		log.Warn("生产环境正在使用默认密钥！请立即设置 APP_SECRET 环境变量")
	}

	siteURL := strings.TrimRight(getEnv("SITE_URL", "http://localhost:8000"), "/")
	rps, _ := strconv.ParseFloat(getEnv("LIMITER_RPS", "10"), 64)

	return &Config{
		Env:              env,
		AppSecret:        appSecret,
		DatabaseURL:      dbURL,
		JWTExpiry:        time.Duration(expiryHours) * time.Hour,
		RefreshExpiry:    time.Duration(refreshHours) * time.Hour,
		ConfirmationTTL:  time.Duration(confirmDays) * 24 * time.Hour,
		Port:             getEnv("PORT", "8000"),
		SiteName:         getEnv("SITE_NAME", "Paper Tiger Cinema"),
		SiteUrl:          siteURL,
		LoginRedirectURL: getEnv("LOGIN_REDIRECT_URL", siteURL+"/login"),
		AllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ArchiveBaseURL:   strings.TrimRight(getEnv("ARCHIVE_BASE_URL", "https://archive.org"), "/"),
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			Sender:   getEnv("SMTP_SENDER", "Paper Tiger Cinema <noreply@papertigercinema.com>"),
		},
		Limiter: LimiterConfig{
			Enabled: getEnv("LIMITER_ENABLED", "true") == "true",
			RPS:     rps,
			Burst:   getEnvInt("LIMITER_BURST", 20),
		},
	}
}

// IsProduction 是否生产环境
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

// splitList 解析逗号分隔的列表，去掉空白和末尾斜杠
func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}
