package domain

import (
	"context"
	"time"
)

// HarvesterConfigRepository 采集配置仓储接口
type HarvesterConfigRepository interface {
	// Create 创建配置，返回带 ID 的配置
	Create(ctx context.Context, cfg *HarvesterConfig) (*HarvesterConfig, error)

	// Update 整体替换配置（按 ID）
	Update(ctx context.Context, cfg *HarvesterConfig) (*HarvesterConfig, error)

	// GetByID 根据ID获取配置
	GetByID(ctx context.Context, id int64) (*HarvesterConfig, error)

	// List 按 ID 顺序列出某协议的配置，limit <= 0 表示不限制
	List(ctx context.Context, protocol Protocol, start, limit int) ([]*HarvesterConfig, error)

	// ListEnabled 列出所有启用的配置
	ListEnabled(ctx context.Context) ([]*HarvesterConfig, error)

	// Delete 删除配置
	Delete(ctx context.Context, id int64) error

	// SetEnabled 修改启用状态
	SetEnabled(ctx context.Context, id int64, enabled bool) error

	// CommitSeqno 提交序号水位，只会增大
	CommitSeqno(ctx context.Context, id int64, seqno int64) error

	// MarkHarvested 更新最后采集时间
	MarkHarvested(ctx context.Context, id int64, at time.Time) error
}

// HarvestRunRepository 运行历史仓储接口
type HarvestRunRepository interface {
	Create(ctx context.Context, run *HarvestRun) (*HarvestRun, error)

	// ListByConfig 分页获取某配置的运行历史，按开始时间倒序
	ListByConfig(ctx context.Context, configID int64, page, pageSize int) ([]*HarvestRun, error)

	CountByConfig(ctx context.Context, configID int64) (int64, error)

	// DeleteBefore 删除早于指定时间的历史
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
