// Package writequeue serializes database writes that target the same harvester config
// Package writequeue 串行化同一采集配置的数据库写操作
//
// The runner commits seqno per entry while the API may rewrite the same row, and SQLite
// reports "database is locked" under concurrent writers; every write for one config id
// is funnelled through a single goroutine.
package writequeue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrWriteQueueFull 当配置写队列已满时返回
	ErrWriteQueueFull = errors.New("write queue is full")
	// ErrWriteQueueClosed 当写队列管理器已关闭时返回
	ErrWriteQueueClosed = errors.New("write queue is closed")
	// ErrWriteTimeout 当写操作超时时返回
	ErrWriteTimeout = errors.New("write operation timeout")
)

// Config 写队列配置
type Config struct {
	// QueueCapacity 每个配置的队列容量，默认 100
	QueueCapacity int `yaml:"queue-capacity" default:"100"`
	// WriteTimeout 写操作超时时间，默认 30 秒
	WriteTimeout time.Duration `yaml:"write-timeout" default:"30s"`
	// IdleTimeout 空闲队列回收时间，默认 10 分钟
	IdleTimeout time.Duration `yaml:"idle-timeout" default:"10m"`
}

func DefaultConfig() Config {
	return Config{
		QueueCapacity: 100,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   10 * time.Minute,
	}
}

type writeOp struct {
	ctx    context.Context
	fn     func() error
	result chan error
}

// keyQueue 单个配置的写队列
type keyQueue struct {
	key      int64
	ch       chan writeOp
	lastUsed atomic.Int64
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Manager manages one FIFO write queue per key
// Manager 为每个 key 维护一个先进先出的写队列
type Manager struct {
	config Config
	logger *zap.Logger

	mu     sync.Mutex
	queues map[int64]*keyQueue
	closed bool

	executed atomic.Int64
	failed   atomic.Int64

	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

// New creates a write queue manager; nil cfg uses DefaultConfig
// New 创建写队列管理器
func New(cfg *Config, logger *zap.Logger) *Manager {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 100
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		config:      c,
		logger:      logger,
		queues:      make(map[int64]*keyQueue),
		cleanupStop: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	go m.cleanupIdleQueues()

	return m
}

// Execute runs fn on the queue of key and waits for its result
// Execute 在 key 对应的队列上执行 fn 并等待结果
func (m *Manager) Execute(ctx context.Context, key int64, fn func() error) error {
	op := writeOp{ctx: ctx, fn: fn, result: make(chan error, 1)}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrWriteQueueClosed
	}
	q := m.queueLocked(key)
	q.lastUsed.Store(time.Now().UnixNano())
	select {
	case q.ch <- op:
	default:
		m.mu.Unlock()
		return ErrWriteQueueFull
	}
	m.mu.Unlock()

	timer := time.NewTimer(m.config.WriteTimeout)
	defer timer.Stop()

	select {
	case err := <-op.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrWriteTimeout
	}
}

func (m *Manager) queueLocked(key int64) *keyQueue {
	if q, ok := m.queues[key]; ok {
		return q
	}
	q := &keyQueue{
		key:    key,
		ch:     make(chan writeOp, m.config.QueueCapacity),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	m.queues[key] = q
	go m.worker(q)
	return q
}

func (m *Manager) worker(q *keyQueue) {
	defer close(q.doneCh)
	for {
		select {
		case op := <-q.ch:
			m.executeOp(q, op)
		case <-q.stopCh:
			// 处理剩余的写操作
			for {
				select {
				case op := <-q.ch:
					m.executeOp(q, op)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) executeOp(q *keyQueue, op writeOp) {
	defer q.lastUsed.Store(time.Now().UnixNano())

	if err := op.ctx.Err(); err != nil {
		op.result <- err
		return
	}

	err := op.fn()
	m.executed.Add(1)
	if err != nil {
		m.failed.Add(1)
		m.logger.Debug("write queue op failed", zap.Int64("key", q.key), zap.Error(err))
	}
	op.result <- err
}

func (m *Manager) cleanupIdleQueues() {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(m.config.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.doCleanup()
		case <-m.cleanupStop:
			return
		}
	}
}

// doCleanup 回收空闲且没有待处理操作的队列
func (m *Manager) doCleanup() {
	threshold := time.Now().Add(-m.config.IdleTimeout).UnixNano()

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, q := range m.queues {
		if q.lastUsed.Load() < threshold && len(q.ch) == 0 {
			close(q.stopCh)
			delete(m.queues, key)
		}
	}
}

// Shutdown drains every queue; it returns ctx.Err() if draining outlives ctx
// Shutdown 处理完所有队列后退出
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.cleanupStop)
	queues := make([]*keyQueue, 0, len(m.queues))
	for key, q := range m.queues {
		close(q.stopCh)
		queues = append(queues, q)
		delete(m.queues, key)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-m.cleanupDone
		for _, q := range queues {
			<-q.doneCh
		}
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("write queue shutdown completed", zap.Int64("executed", m.executed.Load()))
		return nil
	case <-ctx.Done():
		m.logger.Warn("write queue shutdown timeout")
		return ctx.Err()
	}
}

// QueueCount 当前存活的队列数
func (m *Manager) QueueCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues)
}

// Metrics 写队列指标
type Metrics struct {
	Queues   int   `json:"queues"`
	Executed int64 `json:"executed"`
	Failed   int64 `json:"failed"`
	Closed   bool  `json:"closed"`
}

func (m *Manager) GetMetrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Metrics{
		Queues:   len(m.queues),
		Executed: m.executed.Load(),
		Failed:   m.failed.Load(),
		Closed:   m.closed,
	}
}
