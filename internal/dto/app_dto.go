// Package dto Defines data transfer objects (request parameters and response structs)
// Package dto 定义数据传输对象（请求参数和响应结构体）
package dto

// VersionDTO version information for API response
// VersionDTO 版本信息 API 响应对象
type VersionDTO struct {
	Name      string `json:"name"`      // Service name // 服务名称
	Version   string `json:"version"`   // Current version // 当前版本
	GitTag    string `json:"gitTag"`    // Git tag // Git 标签
	BuildTime string `json:"buildTime"` // Build time // 构建时间
}

// HealthDTO health check response
// HealthDTO 健康检查响应
type HealthDTO struct {
	Status       string  `json:"status"`       // "healthy" or "unhealthy" // 健康状态
	Version      string  `json:"version"`      // Service version // 服务版本号
	Uptime       float64 `json:"uptime"`       // Uptime in seconds // 运行时间（秒）
	Database     string  `json:"database"`     // "connected" or "error" // 数据库状态
	ActiveRuns   int64   `json:"activeRuns"`   // Runs executing on the worker pool // 正在执行的采集数
	QueuedRuns   int     `json:"queuedRuns"`   // Runs waiting for a worker // 排队中的采集数
	ShuttingDown bool    `json:"shuttingDown"` // Service is shutting down // 服务正在关闭
}
