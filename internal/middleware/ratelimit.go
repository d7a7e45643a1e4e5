package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/papertiger/internal/config"
	"github.com/user/papertiger/internal/utils"
	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 10000
	clientTTL         = 10 * time.Minute
)

// RateLimit 按客户端 IP 的令牌桶限流，IP 表容量有限且条目会过期
func RateLimit(cfg config.LimiterConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	clients := utils.NewBoundedCache[*rate.Limiter](maxTrackedClients, clientTTL)

	return func(c *gin.Context) {
		ip := c.ClientIP()

		limiter, ok := clients.Get(ip)
		if !ok {
			// 并发首次访问时以先写入的为准
			limiter = clients.GetOrSet(ip, rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst))
		}

		if !limiter.Allow() {
			utils.TooManyRequests(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
