package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/patrickmn/go-cache"
)

// NewTTLCache 创建带过期时间的内存缓存
func NewTTLCache(defaultTTL, cleanupInterval time.Duration) *cache.Cache {
	return cache.New(defaultTTL, cleanupInterval)
}

// CacheItem 包装实际的数据，增加过期时间
type CacheItem[T any] struct {
	Value     T
	ExpiredAt time.Time
}

// BoundedCache 容量有限的 LRU 缓存，条目带 TTL
type BoundedCache[T any] struct {
	storage *lru.Cache[string, CacheItem[T]]
	ttl     time.Duration
}

// NewBoundedCache size 是最大缓存条数，ttl 是数据有效期
func NewBoundedCache[T any](size int, ttl time.Duration) *BoundedCache[T] {
	// lru.New 是线程安全的
	c, _ := lru.New[string, CacheItem[T]](size)
	return &BoundedCache[T]{
		storage: c,
		ttl:     ttl,
	}
}

// Set 写入（LRU 中 Add 会自动处理 Update）
func (c *BoundedCache[T]) Set(key string, value T) {
	c.storage.Add(key, CacheItem[T]{
		Value:     value,
		ExpiredAt: time.Now().Add(c.ttl),
	})
}

// Get 读取，过期条目视为不存在
func (c *BoundedCache[T]) Get(key string) (T, bool) {
	var zero T
	item, ok := c.storage.Get(key)
	if !ok {
		return zero, false
	}

	if time.Now().After(item.ExpiredAt) {
		c.storage.Remove(key)
		return zero, false
	}

	return item.Value, true
}

// GetOrSet 不存在或已过期时写入 value，返回缓存中的值
func (c *BoundedCache[T]) GetOrSet(key string, value T) T {
	now := time.Now()
	item := CacheItem[T]{Value: value, ExpiredAt: now.Add(c.ttl)}

	prev, loaded, _ := c.storage.PeekOrAdd(key, item)
	if !loaded {
		return value
	}
	if now.Before(prev.ExpiredAt) {
		return prev.Value
	}
	c.storage.Add(key, item)
	return value
}

// Len 当前条目数
func (c *BoundedCache[T]) Len() int {
	return c.storage.Len()
}
