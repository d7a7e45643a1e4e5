package service

import "time"

// Clock 时间来源，测试里用固定时间替换
type Clock interface {
	Now() time.Time
}

// RealClock 系统时间
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
