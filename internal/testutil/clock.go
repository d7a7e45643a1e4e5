package testutil

import (
	"sync"
	"time"
)

// StubClock 返回固定时间，可并发使用
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStubClock 创建指定时间的时钟
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock 固定在 2024-01-15 10:30:00 UTC
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 时钟前进 d
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
