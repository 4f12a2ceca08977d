package task

import (
	"context"
	"time"

	"github.com/haierkeys/harvester-service/internal/app"
	"github.com/haierkeys/harvester-service/pkg/logger"

	"go.uber.org/zap"
)

type historyCleaner interface {
	CleanupHistory(ctx context.Context) (int64, error)
}

// RunHistoryCleanTask 清理过期的运行历史
type RunHistoryCleanTask struct {
	runs   historyCleaner
	logger *zap.Logger
}

func (t *RunHistoryCleanTask) Name() string {
	return "RunHistoryCleanup"
}

func (t *RunHistoryCleanTask) LoopInterval() time.Duration {
	return time.Hour
}

func (t *RunHistoryCleanTask) IsStartupRun() bool {
	return true
}

func (t *RunHistoryCleanTask) Run(ctx context.Context) error {
	n, err := t.runs.CleanupHistory(ctx)
	if err != nil {
		return err
	}
	t.logger.Info("task log",
		zap.String(logger.FieldTask, t.Name()),
		zap.String("msg", "success"),
		zap.Int64("deleted", n))
	return nil
}

// NewRunHistoryCleanTask 创建清理任务，未配置保留时间时不启用
func NewRunHistoryCleanTask(appContainer *app.App) (Task, error) {
	if appContainer.Config().GetHarvestServiceConfig().RunHistoryRetention <= 0 {
		return nil, nil
	}
	return &RunHistoryCleanTask{
		runs:   appContainer.RunService,
		logger: appContainer.Logger(),
	}, nil
}

func init() {
	RegisterWithApp(NewRunHistoryCleanTask)
}
