// Package app 提供应用容器，封装所有依赖和服务
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/haierkeys/harvester-service/internal/dao"
	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/internal/harvest"
	"github.com/haierkeys/harvester-service/internal/service"
	pkgapp "github.com/haierkeys/harvester-service/pkg/app"
	"github.com/haierkeys/harvester-service/pkg/storage"
	"github.com/haierkeys/harvester-service/pkg/workerpool"
	"github.com/haierkeys/harvester-service/pkg/writequeue"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App 应用容器，封装所有依赖和服务
type App struct {
	// 基础设施（注入的依赖）
	config *AppConfig
	logger *zap.Logger
	DB     *gorm.DB
	Dao    *dao.Dao

	// Registry 服务自身的 Prometheus 指标注册表
	Registry *prometheus.Registry

	// StartTime 容器创建时间，用于健康检查的运行时长
	StartTime time.Time

	// 并发控制组件
	workerPool    *workerpool.Pool
	writeQueueMgr *writequeue.Manager

	// Repository 层
	ConfigRepo domain.HarvesterConfigRepository
	RunRepo    domain.HarvestRunRepository

	// 采集组件
	Sink       storage.Storager
	Transports *harvest.Transports
	Runner     *harvest.Runner

	// Service 层
	HarvesterService service.HarvesterService
	RunService       service.RunService
	Notifier         service.Notifier

	// 基础设施组件
	TokenManager pkgapp.TokenManager

	// 关闭控制
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// Option 应用容器选项
type Option func(*options)

type options struct {
	registry  *prometheus.Registry
	sink      storage.Storager
	listers   harvest.ListerFactory
	collector bool
}

// WithRegistry 使用指定的指标注册表
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithSink 替换输出端，未设置时根据 output 配置创建
func WithSink(s storage.Storager) Option {
	return func(o *options) { o.sink = s }
}

// WithListerFactory 替换远端 Lister 工厂
func WithListerFactory(f harvest.ListerFactory) Option {
	return func(o *options) { o.listers = f }
}

// NewApp 创建应用容器实例
// 初始化所有依赖并进行依赖注入
// cfg: 应用配置（必须）
// logger: zap 日志器（必须）
// db: 数据库连接（必须）
func NewApp(cfg *AppConfig, logger *zap.Logger, db *gorm.DB, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.collector = true
	}

	a := &App{
		config:     cfg,
		logger:     logger,
		DB:         db,
		Registry:   o.registry,
		StartTime:  time.Now(),
		shutdownCh: make(chan struct{}),
	}
	if o.collector {
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	// 初始化 Worker Pool
	wpConfig := cfg.Harvest.WorkerPool
	a.workerPool = workerpool.New(&wpConfig, logger)

	// 初始化 Write Queue Manager
	wqConfig := cfg.Harvest.WriteQueue
	a.writeQueueMgr = writequeue.New(&wqConfig, logger)

	// 初始化 DAO（使用依赖注入）
	a.Dao = dao.New(db, a.writeQueueMgr, logger)

	// 初始化 TokenManager
	a.TokenManager = pkgapp.NewTokenManager(pkgapp.TokenConfig{
		SecretKey: cfg.Security.AuthTokenKey,
		Issuer:    pkgapp.DefaultTokenIssuer,
		Expiry:    cfg.GetTokenExpiry(),
	})

	// 初始化 Repository 层
	a.ConfigRepo = dao.NewHarvesterConfigRepository(a.Dao)
	a.RunRepo = dao.NewHarvestRunRepository(a.Dao)

	// 输出端
	a.Sink = o.sink
	if a.Sink == nil {
		sink, err := storage.NewClient(&cfg.Output, logger)
		if err != nil {
			return nil, fmt.Errorf("output sink %s: %w", cfg.Output.Type, err)
		}
		a.Sink = sink
	}

	listers := o.listers
	if listers == nil {
		transports, err := harvest.NewTransports(cfg.Harvest.Transport, logger)
		if err != nil {
			return nil, fmt.Errorf("harvest transport: %w", err)
		}
		a.Transports = transports
		listers = transports
	}

	metrics, err := harvest.NewMetrics(a.Registry)
	if err != nil {
		return nil, fmt.Errorf("register harvest metrics: %w", err)
	}
	a.Runner = harvest.NewRunner(a.ConfigRepo, a.Sink, listers, logger,
		harvest.WithMetrics(metrics),
		harvest.WithAppID(cfg.Harvest.AppID),
	)

	// 初始化 Service 层（依赖注入）
	a.Notifier = service.NewNotifier(cfg.Notify, logger)
	a.HarvesterService = service.NewHarvesterService(a.ConfigRepo, logger)
	a.RunService, err = service.NewRunService(a.ConfigRepo, a.RunRepo, a.Runner, a.workerPool, a.Notifier, cfg.GetHarvestServiceConfig(), logger)
	if err != nil {
		return nil, err
	}

	logger.Info("App container initialized successfully",
		zap.String("output", cfg.Output.Type),
		zap.Int("workerPoolMaxWorkers", wpConfig.MaxWorkers),
		zap.Int("writeQueueCapacity", wqConfig.QueueCapacity))

	return a, nil
}

// Close 释放数据库连接
func (a *App) Close() error {
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err != nil {
			return fmt.Errorf("failed to get sql.DB: %w", err)
		}
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		a.logger.Info("Database connection closed")
	}
	return nil
}

// Config 获取应用配置
func (a *App) Config() *AppConfig {
	return a.config
}

// Logger 获取日志器
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Version 获取版本信息
func (a *App) Version() pkgapp.VersionInfo {
	return pkgapp.VersionInfo{
		Version:   Version,
		GitTag:    GitTag,
		BuildTime: BuildTime,
	}
}

// IsProductionMode 是否为生产模式
// 根据日志配置中的 Production 字段判断
func (a *App) IsProductionMode() bool {
	return a.config.Log.Production
}

// WorkerPool 获取 Worker Pool（用于高级操作）
func (a *App) WorkerPool() *workerpool.Pool {
	return a.workerPool
}

// WriteQueueManager 获取 Write Queue Manager（用于高级操作）
func (a *App) WriteQueueManager() *writequeue.Manager {
	return a.writeQueueMgr
}

// DefaultShutdownTimeout 默认关闭超时时间
const DefaultShutdownTimeout = 30 * time.Second

// Shutdown 优雅关闭应用容器
// 按顺序关闭：RunService（中止运行并排空 Worker Pool）-> Write Queue Manager -> Database
// ctx 用于控制关闭超时，如果为 nil 则使用默认 30 秒超时
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
	}

	var errs []error
	a.shutdownOnce.Do(func() {
		a.logger.Info("App container shutting down...")
		close(a.shutdownCh)

		// 1. 中止运行中的采集，等待 worker pool 排空
		if a.RunService != nil {
			a.logger.Info("Shutting down run service...")
			if err := a.RunService.Shutdown(ctx); err != nil {
				a.logger.Warn("Run service shutdown error", zap.Error(err))
				errs = append(errs, fmt.Errorf("run service shutdown: %w", err))
			}
		}

		// 2. 关闭 Write Queue Manager（排空所有队列）
		if a.writeQueueMgr != nil {
			a.logger.Info("Shutting down write queue manager...")
			if err := a.writeQueueMgr.Shutdown(ctx); err != nil {
				a.logger.Warn("write queue manager shutdown error", zap.Error(err))
				errs = append(errs, fmt.Errorf("write queue manager shutdown: %w", err))
			}
		}

		// 3. 关闭数据库连接
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	})

	if len(errs) > 0 {
		a.logger.Warn("App container shutdown completed with errors",
			zap.Int("errorCount", len(errs)))
		return fmt.Errorf("shutdown completed with %d errors: %v", len(errs), errs)
	}

	a.logger.Info("App container shutdown completed successfully")
	return nil
}

// IsShuttingDown 检查应用是否正在关闭
func (a *App) IsShuttingDown() bool {
	select {
	case <-a.shutdownCh:
		return true
	default:
		return false
	}
}

// ShutdownCh 返回关闭信号通道（用于监听关闭事件）
func (a *App) ShutdownCh() <-chan struct{} {
	return a.shutdownCh
}
