package harvest

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/pkg/fileurl"
	"github.com/haierkeys/harvester-service/pkg/logger"
	"github.com/haierkeys/harvester-service/pkg/storage"

	"github.com/klauspost/compress/gzip"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultAppID transfile 名称中的应用标识
const DefaultAppID = "harvester"

// ErrNoSink 未配置输出端
var ErrNoSink = errors.New("no output storage configured")

// ErrUnsafeName 远端文件名无法映射为单层文件名
var ErrUnsafeName = errors.New("remote file name has no usable base name")

// ConfigStore is the part of the config repository a run writes to.
type ConfigStore interface {
	CommitSeqno(ctx context.Context, id int64, seqno int64) error
	MarkHarvested(ctx context.Context, id int64, at time.Time) error
}

// Runner executes harvest runs and test previews.
// Runner 执行采集与测试预览
type Runner struct {
	store   ConfigStore
	sink    storage.Storager
	listers ListerFactory
	appID   string
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// RunnerOption Runner 可选项
type RunnerOption func(*Runner)

// WithMetrics 记录 Prometheus 指标
func WithMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithAppID 设置 transfile 名称中的应用标识
func WithAppID(appID string) RunnerOption {
	return func(r *Runner) {
		if appID != "" {
			r.appID = appID
		}
	}
}

// WithClock 替换时钟，用于测试
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner 创建 Runner
func NewRunner(store ConfigStore, sink storage.Storager, listers ListerFactory, lg *zap.Logger, opts ...RunnerOption) *Runner {
	if lg == nil {
		lg = zap.NewNop()
	}
	r := &Runner{
		store:   store,
		sink:    sink,
		listers: listers,
		appID:   DefaultAppID,
		logger:  lg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Test lists the remote side and reports what a run would do, without downloading
// or touching persisted state. Entries are ordered by file name, descending.
func (r *Runner) Test(ctx context.Context, cfg *domain.HarvesterConfig) ([]domain.TestEntry, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "harvest.test")
	defer span.Finish()
	span.SetTag("config.id", cfg.ID)

	lister, err := r.listers.NewLister(ctx, cfg)
	if err != nil {
		return nil, transportErr(cfg.Protocol, "connect", "", err)
	}
	defer lister.Close()

	files, err := lister.List(ctx)
	if err != nil {
		return nil, transportErr(cfg.Protocol, "list", "", err)
	}
	plan, err := BuildPlan(cfg, files, r.logger)
	if err != nil {
		return nil, err
	}
	if plan.Entries == nil {
		return []domain.TestEntry{}, nil
	}
	return plan.Entries, nil
}

// Run executes one harvest of cfg, reporting progress through tracker.
// The returned run record is always set, err carries the failure for FAILED and ABORTED runs.
//
// Each delivered entry commits its seqno before the next one starts, so an abort or a failure
// keeps everything delivered so far and never commits the entry that was in flight.
func (r *Runner) Run(ctx context.Context, cfg *domain.HarvesterConfig, tracker *Tracker, trigger domain.Trigger) (*domain.HarvestRun, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "harvest.run")
	defer span.Finish()
	span.SetTag("config.id", cfg.ID)
	span.SetTag("protocol", string(cfg.Protocol))
	span.SetTag("run.id", tracker.RunID())

	lg := r.logger.With(
		zap.Int64(logger.FieldConfigID, cfg.ID),
		zap.String(logger.FieldRunID, tracker.RunID()),
		zap.String(logger.FieldProtocol, string(cfg.Protocol)),
		zap.String(logger.FieldTrigger, string(trigger)))

	run := &domain.HarvestRun{
		RunID:       tracker.RunID(),
		ConfigID:    cfg.ID,
		Protocol:    cfg.Protocol,
		Trigger:     trigger,
		StartedAt:   tracker.StartedAt(),
		SeqnoBefore: cfg.Seqno,
		SeqnoAfter:  cfg.Seqno,
	}

	r.metrics.runStarted()
	lg.Info("harvest started", zap.String("name", cfg.Name), zap.Int64(logger.FieldSeqno, cfg.Seqno))

	err := r.execute(ctx, cfg, tracker, run, lg)
	if err == nil {
		if merr := r.store.MarkHarvested(context.WithoutCancel(ctx), cfg.ID, r.now()); merr != nil {
			err = errors.Wrap(merr, "mark harvested")
		}
	}

	run.FinishedAt = r.now()
	elapsed := run.FinishedAt.Sub(run.StartedAt)
	switch {
	case err == nil:
		run.State = domain.RunCompleted
		run.Message = fmt.Sprintf("Done in %ds", int64(elapsed.Seconds()))
	case tracker.Aborted() || errors.Is(err, ErrAborted):
		err = ErrAborted
		run.State = domain.RunAborted
		run.Message = "Aborted"
	default:
		run.State = domain.RunFailed
		run.Message = err.Error()
		ext.Error.Set(span, true)
		span.LogKV("event", "error", "message", err.Error())
	}
	tracker.finish(run.State, run.Message)

	snap := tracker.Snapshot()
	run.FilesTotal, run.FilesDone, run.Bytes = snap.FilesTotal, snap.FilesDone, snap.Bytes
	r.metrics.runFinished(run)

	fields := []zap.Field{
		zap.String(logger.FieldState, string(run.State)),
		zap.Int("filesDone", run.FilesDone),
		zap.Int64("bytes", run.Bytes),
		zap.Int64(logger.FieldSeqno, run.SeqnoAfter),
		zap.Duration(logger.FieldDuration, elapsed),
	}
	if run.State == domain.RunFailed {
		lg.Error("harvest failed", append(fields, zap.Error(err))...)
	} else {
		lg.Info("harvest finished", fields...)
	}
	return run, err
}

func (r *Runner) execute(ctx context.Context, cfg *domain.HarvesterConfig, tracker *Tracker, run *domain.HarvestRun, lg *zap.Logger) error {
	if r.sink == nil {
		return ErrNoSink
	}
	if tracker.Aborted() {
		return ErrAborted
	}
	r.transition(tracker, domain.RunListing, lg)

	// 连接与列目录阶段同样可被中止
	listCtx, cancelList := context.WithCancel(ctx)
	defer cancelList()
	tracker.bindCancel(cancelList)

	lister, err := r.listers.NewLister(listCtx, cfg)
	if err != nil {
		if tracker.Aborted() {
			return ErrAborted
		}
		return transportErr(cfg.Protocol, "connect", "", err)
	}
	defer lister.Close()

	files, err := lister.List(listCtx)
	tracker.bindCancel(func() {})
	if tracker.Aborted() {
		return ErrAborted
	}
	if err != nil {
		return transportErr(cfg.Protocol, "list", "", err)
	}
	plan, err := BuildPlan(cfg, files, lg)
	if err != nil {
		return err
	}
	tracker.setListed(len(plan.Fetch), plan.TotalBytes())
	lg.Info("listing done", zap.Int("files", len(files)), zap.Int("eligible", len(plan.Fetch)))

	for _, c := range plan.Fetch {
		if tracker.Aborted() {
			return ErrAborted
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.deliver(ctx, cfg, c, tracker, lg)
		if err != nil {
			if tracker.Aborted() {
				return ErrAborted
			}
			return err
		}

		if c.Seqno != nil {
			// 已投递的条目必须提交，不受中止影响
			if err := r.store.CommitSeqno(context.WithoutCancel(ctx), cfg.ID, *c.Seqno); err != nil {
				return errors.Wrapf(err, "commit seqno %d", *c.Seqno)
			}
			if *c.Seqno > run.SeqnoAfter {
				run.SeqnoAfter = *c.Seqno
			}
		}
		tracker.fileDone()
		r.metrics.fileDelivered(cfg.Protocol, n)
	}
	return nil
}

// deliver streams one entry to the sink as a data file, then writes its transfile.
// It returns the number of bytes read from the remote side.
func (r *Runner) deliver(ctx context.Context, cfg *domain.HarvesterConfig, c Candidate, tracker *Tracker, lg *zap.Logger) (int64, error) {
	entryCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	tracker.bindCancel(cancel)
	defer tracker.bindCancel(func() {})

	span, entryCtx := opentracing.StartSpanFromContext(entryCtx, "harvest.entry")
	defer span.Finish()
	span.SetTag("file", c.File.Name)

	// 远端给出的文件名只保留最后一段
	name := fileurl.SafeName(c.File.Name)
	if name == "" {
		return 0, errors.Wrapf(ErrUnsafeName, "%q", c.File.Name)
	}
	if name != c.File.Name {
		lg.Warn("remote file name reduced to its base name",
			zap.String(logger.FieldFile, c.File.Name), zap.String("name", name))
	}

	r.transition(tracker, domain.RunDownloading, lg)
	start := time.Now()

	body, err := c.File.Open(entryCtx)
	if err != nil {
		return 0, transportErr(cfg.Protocol, "open", c.File.Name, err)
	}
	defer body.Close()

	counter := &countingReader{r: &ctxReader{ctx: entryCtx, r: body}, tracker: tracker}
	upload := cfg.UploadName(name)
	dataName := upload
	contentType := "application/octet-stream"
	var (
		src io.Reader = counter
		zr  *gzipReader
	)
	if cfg.Gzip {
		dataName += ".gz"
		contentType = "application/gzip"
		zr = gzipStream(counter)
		defer zr.Close()
		src = zr
	}

	modTime := c.File.ModTime
	if modTime.IsZero() {
		modTime = r.now()
	}
	_, err = r.sink.SendFile(entryCtx, dataName, src, contentType, modTime)
	if zr != nil {
		// 压缩协程结束后才能读取计数
		if err != nil {
			cancel()
		}
		_ = zr.Close()
	}
	if err != nil {
		if counter.err != nil {
			return counter.n, transportErr(cfg.Protocol, "read", c.File.Name, counter.err)
		}
		return counter.n, errors.Wrapf(err, "deliver %s", dataName)
	}
	if tracker.Aborted() {
		return counter.n, ErrAborted
	}

	r.transition(tracker, domain.RunProcessing, lg)
	transfile := GenerateTransfile(cfg.Transfile, []string{dataName})
	transName := TransfileName(upload, r.appID)
	if _, err := r.sink.SendContent(entryCtx, transName, []byte(transfile), r.now()); err != nil {
		return counter.n, errors.Wrapf(err, "deliver %s", transName)
	}

	lg.Info("file delivered",
		zap.String(logger.FieldFile, c.File.Name),
		zap.String(logger.FieldFileKey, dataName),
		zap.Int64(logger.FieldSize, counter.n),
		zap.Duration(logger.FieldDuration, time.Since(start)))
	return counter.n, nil
}

func (r *Runner) transition(t *Tracker, s domain.RunState, lg *zap.Logger) {
	if t.State() == s {
		return
	}
	if t.setState(s) {
		lg.Debug("state changed", zap.String(logger.FieldState, string(s)))
	}
}

// countingReader 统计从远端读取的字节数并记录读取错误
type countingReader struct {
	r       io.Reader
	tracker *Tracker
	n       int64
	err     error
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.n += int64(n)
		c.tracker.addBytes(int64(n))
	}
	if err != nil && err != io.EOF {
		c.err = err
	}
	return n, err
}

// gzipReader compresses its source on the fly.
// Close stops the compressor and waits for it to exit.
type gzipReader struct {
	*io.PipeReader
	done chan struct{}
}

func gzipStream(src io.Reader) *gzipReader {
	pr, pw := io.Pipe()
	g := &gzipReader{PipeReader: pr, done: make(chan struct{})}
	go func() {
		defer close(g.done)
		zw := gzip.NewWriter(pw)
		_, err := io.Copy(zw, src)
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
		_ = pw.CloseWithError(err)
	}()
	return g
}

func (g *gzipReader) Close() error {
	err := g.PipeReader.Close()
	<-g.done
	return err
}
