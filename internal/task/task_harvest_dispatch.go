package task

import (
	"context"
	"time"

	"github.com/haierkeys/harvester-service/internal/app"
	"github.com/haierkeys/harvester-service/pkg/logger"

	"go.uber.org/zap"
)

// dispatcher 调度任务依赖的最小接口
type dispatcher interface {
	ExecuteScheduled(ctx context.Context) (int, error)
}

// HarvestDispatchTask fires every enabled config whose schedule is due
// HarvestDispatchTask 周期性派发到期的采集配置
type HarvestDispatchTask struct {
	runs     dispatcher
	interval time.Duration
	logger   *zap.Logger
}

func (t *HarvestDispatchTask) Name() string {
	return "HarvestDispatch"
}

func (t *HarvestDispatchTask) LoopInterval() time.Duration {
	return t.interval
}

// IsStartupRun 启动时立即检查一次，补齐停机期间错过的执行
func (t *HarvestDispatchTask) IsStartupRun() bool {
	return true
}

func (t *HarvestDispatchTask) Run(ctx context.Context) error {
	n, err := t.runs.ExecuteScheduled(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		t.logger.Info("task log",
			zap.String(logger.FieldTask, t.Name()),
			zap.Int("dispatched", n))
	}
	return nil
}

// NewHarvestDispatchTask 创建采集派发任务
func NewHarvestDispatchTask(appContainer *app.App) (Task, error) {
	return &HarvestDispatchTask{
		runs:     appContainer.RunService,
		interval: appContainer.Config().GetSchedulerInterval(),
		logger:   appContainer.Logger(),
	}, nil
}

func init() {
	RegisterWithApp(NewHarvestDispatchTask)
}
