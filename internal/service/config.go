// Package service implements the business logic layer
// Package service 实现业务逻辑层
package service

import "time"

// DefaultTestTimeout 预览列举的默认超时
const DefaultTestTimeout = 2 * time.Minute

// HarvestServiceConfig harvest service configuration
// HarvestServiceConfig 采集服务配置
type HarvestServiceConfig struct {
	Timezone            string        // Timezone cron schedules are evaluated in // 定时表达式使用的时区
	RunHistoryRetention time.Duration // Run history kept for this long, 0 keeps everything // 运行历史保留时长，0 表示永久保留
	TestTimeout         time.Duration // Upper bound of a shared test listing // 预览列举超时
}

func (c HarvestServiceConfig) testTimeout() time.Duration {
	if c.TestTimeout > 0 {
		return c.TestTimeout
	}
	return DefaultTestTimeout
}
