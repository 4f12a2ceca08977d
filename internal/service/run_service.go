package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/internal/harvest"
	"github.com/haierkeys/harvester-service/pkg/code"
	"github.com/haierkeys/harvester-service/pkg/cronexpr"
	"github.com/haierkeys/harvester-service/pkg/logger"
	"github.com/haierkeys/harvester-service/pkg/workerpool"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Runner executes and previews harvests, implemented by *harvest.Runner
type Runner interface {
	Run(ctx context.Context, cfg *domain.HarvesterConfig, tracker *harvest.Tracker, trigger domain.Trigger) (*domain.HarvestRun, error)
	Test(ctx context.Context, cfg *domain.HarvesterConfig) ([]domain.TestEntry, error)
}

// RunService coordinates runs: at most one active run per config id.
// A second request while a run is active is rejected with ErrorAlreadyRunning.
// RunService 运行协调服务：每个配置同一时间最多一个运行
type RunService interface {
	// RunNow starts a run outside the schedule and returns its run id
	// RunNow 立即触发一次运行，返回运行 ID
	RunNow(ctx context.Context, protocol domain.Protocol, id int64) (string, error)

	// Test 非破坏性预览
	Test(ctx context.Context, protocol domain.Protocol, id int64) ([]domain.TestEntry, error)

	// Abort 中止正在运行的任务
	Abort(ctx context.Context, protocol domain.Protocol, id int64) error

	// Progress 返回最近一次运行的进度，没有运行过时为零值
	Progress(id int64) domain.Progress

	// Status 同 Progress，但没有运行记录时返回 ErrorRunNotActive
	Status(id int64) (domain.Progress, error)

	// Discard aborts any active run and forgets the progress of a deleted config
	// Discard 中止运行并清除已删除配置的进度
	Discard(id int64)

	// ExecuteScheduled dispatches every enabled config that is due and returns how many started
	// ExecuteScheduled 派发所有到期的启用配置，返回启动数量
	ExecuteScheduled(ctx context.Context) (int, error)

	// History 分页获取运行历史
	History(ctx context.Context, protocol domain.Protocol, id int64, page, pageSize int) ([]*domain.HarvestRun, int64, error)

	// CleanupHistory 清理过期的运行历史
	CleanupHistory(ctx context.Context) (int64, error)

	// Shutdown 停止接收新运行，中止进行中的运行并等待工作池退出
	Shutdown(ctx context.Context) error
}

// runService 实现 RunService 接口
type runService struct {
	configs  domain.HarvesterConfigRepository
	runs     domain.HarvestRunRepository
	runner   Runner
	pool     *workerpool.Pool
	notifier Notifier
	conf     HarvestServiceConfig
	loc      *time.Location
	logger   *zap.Logger
	sf       *singleflight.Group
	now      func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc

	mu           sync.Mutex
	closed       bool
	running      map[int64]*harvest.Tracker
	latest       map[int64]*harvest.Tracker
	lastDispatch map[int64]time.Time
}

// NewRunService 创建 RunService 实例
func NewRunService(
	configs domain.HarvesterConfigRepository,
	runs domain.HarvestRunRepository,
	runner Runner,
	pool *workerpool.Pool,
	notifier Notifier,
	conf HarvestServiceConfig,
	lg *zap.Logger,
) (RunService, error) {
	loc := time.Local
	if conf.Timezone != "" {
		l, err := time.LoadLocation(conf.Timezone)
		if err != nil {
			return nil, code.ErrorValidation.WithDetails("timezone: " + err.Error())
		}
		loc = l
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &runService{
		configs:      configs,
		runs:         runs,
		runner:       runner,
		pool:         pool,
		notifier:     notifier,
		conf:         conf,
		loc:          loc,
		logger:       lg,
		sf:           &singleflight.Group{},
		now:          time.Now,
		baseCtx:      ctx,
		cancel:       cancel,
		running:      make(map[int64]*harvest.Tracker),
		latest:       make(map[int64]*harvest.Tracker),
		lastDispatch: make(map[int64]time.Time),
	}, nil
}

func (s *runService) load(ctx context.Context, protocol domain.Protocol, id int64) (*domain.HarvesterConfig, error) {
	cfg, err := s.configs.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if protocol != "" && cfg.Protocol != protocol {
		return nil, code.ErrorConfigNotFound
	}
	return cfg, nil
}

// start registers a tracker for cfg and queues the run on the worker pool
func (s *runService) start(cfg *domain.HarvesterConfig, trigger domain.Trigger) (*harvest.Tracker, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, code.ErrorServiceClosed
	}
	if _, ok := s.running[cfg.ID]; ok {
		s.mu.Unlock()
		return nil, code.ErrorAlreadyRunning
	}
	tracker := harvest.NewTracker(uuid.NewString(), cfg.ID)
	previous := s.latest[cfg.ID]
	s.running[cfg.ID] = tracker
	s.latest[cfg.ID] = tracker
	s.mu.Unlock()

	err := s.pool.SubmitAsync(s.baseCtx, "harvest:"+strconv.FormatInt(cfg.ID, 10), func(ctx context.Context) error {
		s.execute(ctx, cfg, tracker, trigger)
		return nil
	})
	if err == nil {
		return tracker, nil
	}

	s.mu.Lock()
	delete(s.running, cfg.ID)
	if previous != nil {
		s.latest[cfg.ID] = previous
	} else {
		delete(s.latest, cfg.ID)
	}
	s.mu.Unlock()

	if errors.Is(err, workerpool.ErrWorkerPoolFull) {
		return nil, code.ErrorTooManyRequests.WithDetails(err.Error())
	}
	return nil, code.ErrorServiceClosed
}

// release frees the run slot of id if tracker still holds it
func (s *runService) release(id int64, tracker *harvest.Tracker) {
	s.mu.Lock()
	if s.running[id] == tracker {
		delete(s.running, id)
	}
	s.mu.Unlock()
}

func (s *runService) execute(ctx context.Context, cfg *domain.HarvesterConfig, tracker *harvest.Tracker, trigger domain.Trigger) {
	defer s.release(cfg.ID, tracker)

	// 排队期间水位可能已被上一次运行推进
	fresh, err := s.configs.GetByID(ctx, cfg.ID)
	if err != nil {
		tracker.Fail(err)
		s.logger.Warn("harvest skipped, config unavailable",
			zap.Int64(logger.FieldConfigID, cfg.ID),
			zap.String(logger.FieldRunID, tracker.RunID()),
			zap.Error(err))
		return
	}

	run, _ := s.runner.Run(ctx, fresh, tracker, trigger)
	// 运行结束即释放，记录与通知期间允许再次触发
	s.release(cfg.ID, tracker)
	if run == nil {
		return
	}

	persistCtx := context.WithoutCancel(ctx)
	if _, err := s.runs.Create(persistCtx, run); err != nil {
		s.logger.Error("failed to record harvest run",
			zap.Int64(logger.FieldConfigID, cfg.ID),
			zap.String(logger.FieldRunID, run.RunID),
			zap.Error(err))
	}
	if run.State == domain.RunFailed {
		if err := s.notifier.NotifyFailure(fresh, run); err != nil {
			s.logger.Warn("failure notification not sent",
				zap.Int64(logger.FieldConfigID, cfg.ID),
				zap.Error(err))
		}
	}
}

// RunNow 立即运行
func (s *runService) RunNow(ctx context.Context, protocol domain.Protocol, id int64) (string, error) {
	cfg, err := s.load(ctx, protocol, id)
	if err != nil {
		return "", err
	}
	tracker, err := s.start(cfg, domain.TriggerManual)
	if err != nil {
		return "", err
	}
	s.logger.Info("harvest queued",
		zap.Int64(logger.FieldConfigID, id),
		zap.String(logger.FieldRunID, tracker.RunID()),
		zap.String(logger.FieldTrigger, string(domain.TriggerManual)))
	return tracker.RunID(), nil
}

// Test 预览
func (s *runService) Test(ctx context.Context, protocol domain.Protocol, id int64) ([]domain.TestEntry, error) {
	cfg, err := s.load(ctx, protocol, id)
	if err != nil {
		return nil, err
	}

	v, err, shared := s.sf.Do("test:"+strconv.FormatInt(id, 10), func() (any, error) {
		// 共享的列举不随首个调用方的请求取消
		testCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.conf.testTimeout())
		defer cancel()
		return s.runner.Test(testCtx, cfg)
	})
	if err != nil {
		s.logger.Warn("harvest test failed",
			zap.Int64(logger.FieldConfigID, id),
			zap.Bool("shared", shared),
			zap.Error(err))
		if harvest.IsTransport(err) {
			return nil, code.ErrorTransport.WithDetails(err.Error())
		}
		return nil, code.ErrorServerInternal.WithDetails(err.Error())
	}
	return v.([]domain.TestEntry), nil
}

// Abort 中止
func (s *runService) Abort(ctx context.Context, protocol domain.Protocol, id int64) error {
	if _, err := s.load(ctx, protocol, id); err != nil {
		return err
	}
	s.mu.Lock()
	tracker := s.running[id]
	s.mu.Unlock()

	if tracker == nil || !tracker.Abort() {
		return code.ErrorRunNotActive
	}
	s.logger.Info("harvest abort requested",
		zap.Int64(logger.FieldConfigID, id),
		zap.String(logger.FieldRunID, tracker.RunID()),
		zap.String(logger.FieldState, string(tracker.State())))
	return nil
}

// Progress 获取进度
func (s *runService) Progress(id int64) domain.Progress {
	s.mu.Lock()
	tracker := s.latest[id]
	s.mu.Unlock()
	if tracker == nil {
		return domain.Progress{}
	}
	return tracker.Snapshot()
}

// Status 获取进度，没有记录时报错
func (s *runService) Status(id int64) (domain.Progress, error) {
	s.mu.Lock()
	tracker := s.latest[id]
	s.mu.Unlock()
	if tracker == nil {
		return domain.Progress{}, code.ErrorRunNotActive
	}
	return tracker.Snapshot(), nil
}

func (s *runService) Discard(id int64) {
	s.mu.Lock()
	tracker := s.running[id]
	delete(s.latest, id)
	delete(s.lastDispatch, id)
	s.mu.Unlock()
	if tracker != nil {
		tracker.Abort()
	}
}

// isDue decides whether cfg fires at now. A config fires at most once per minute,
// and a dispatch counts as a harvest so a failing config is not retried every tick.
func (s *runService) isDue(cfg *domain.HarvesterConfig, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	minute := now.Truncate(time.Minute)
	last, dispatched := s.lastDispatch[cfg.ID]
	if dispatched && !last.Before(minute) {
		return false
	}

	var ref *time.Time
	if cfg.LastHarvested != nil {
		t := cfg.LastHarvested.In(s.loc)
		ref = &t
	}
	if dispatched && (ref == nil || last.After(*ref)) {
		ref = &last
	}

	due, err := cronexpr.ShouldExecute(cfg.Schedule, ref, now)
	if err != nil {
		s.logger.Warn("schedule evaluation failed",
			zap.Int64(logger.FieldConfigID, cfg.ID),
			zap.String("schedule", cfg.Schedule),
			zap.Error(err))
		return false
	}
	if due {
		s.lastDispatch[cfg.ID] = now
	}
	return due
}

// ExecuteScheduled 派发到期任务
func (s *runService) ExecuteScheduled(ctx context.Context) (int, error) {
	list, err := s.configs.ListEnabled(ctx)
	if err != nil {
		return 0, code.ErrorDBQuery.WithDetails(err.Error())
	}

	now := s.now().In(s.loc)
	started := 0
	for _, cfg := range list {
		if !s.isDue(cfg, now) {
			continue
		}
		tracker, err := s.start(cfg, domain.TriggerSchedule)
		switch {
		case err == nil:
			started++
			s.logger.Info("harvest queued",
				zap.Int64(logger.FieldConfigID, cfg.ID),
				zap.String(logger.FieldRunID, tracker.RunID()),
				zap.String(logger.FieldTrigger, string(domain.TriggerSchedule)))
		case errors.Is(err, code.ErrorAlreadyRunning):
			s.logger.Debug("harvest still running, fire skipped", zap.Int64(logger.FieldConfigID, cfg.ID))
		case errors.Is(err, code.ErrorServiceClosed):
			return started, err
		default:
			s.logger.Warn("harvest dispatch failed", zap.Int64(logger.FieldConfigID, cfg.ID), zap.Error(err))
		}
	}
	return started, nil
}

// History 运行历史
func (s *runService) History(ctx context.Context, protocol domain.Protocol, id int64, page, pageSize int) ([]*domain.HarvestRun, int64, error) {
	if _, err := s.load(ctx, protocol, id); err != nil {
		return nil, 0, err
	}
	list, err := s.runs.ListByConfig(ctx, id, page, pageSize)
	if err != nil {
		return nil, 0, code.ErrorDBQuery.WithDetails(err.Error())
	}
	count, err := s.runs.CountByConfig(ctx, id)
	if err != nil {
		return nil, 0, code.ErrorDBQuery.WithDetails(err.Error())
	}
	return list, count, nil
}

// CleanupHistory 清理历史
func (s *runService) CleanupHistory(ctx context.Context) (int64, error) {
	if s.conf.RunHistoryRetention <= 0 {
		return 0, nil
	}
	n, err := s.runs.DeleteBefore(ctx, s.now().Add(-s.conf.RunHistoryRetention))
	if err != nil {
		return 0, code.ErrorDBQuery.WithDetails(err.Error())
	}
	return n, nil
}

// Shutdown 关闭
func (s *runService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	active := make([]*harvest.Tracker, 0, len(s.running))
	for _, t := range s.running {
		active = append(active, t)
	}
	s.mu.Unlock()

	for _, t := range active {
		t.Abort()
	}
	s.logger.Info("run service shutting down", zap.Int("aborted", len(active)))

	err := s.pool.Shutdown(ctx)
	s.cancel()
	return err
}
