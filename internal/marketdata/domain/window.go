package domain

import "time"

// Window 行情查询时间窗
type Window struct {
	// From 起始时间
	From time.Time
	// To 截止时间
	To time.Time
	// Resolution 周期（分钟）
	Resolution int
}

// DefaultWindow 默认取最近 7 天、60 分钟周期（历史接口窗口太窄时经常返回空序列）
func DefaultWindow(now time.Time) Window {
	return Window{
		From:       now.Add(-7 * 24 * time.Hour),
		To:         now,
		Resolution: 60,
	}
}
