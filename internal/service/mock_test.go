package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/internal/harvest"

	"gorm.io/gorm"
)

// memConfigRepo 内存配置仓储
type memConfigRepo struct {
	domain.HarvesterConfigRepository

	mu      sync.Mutex
	nextID  int64
	configs map[int64]*domain.HarvesterConfig
	commits []int64
}

func newMemConfigRepo(cfgs ...*domain.HarvesterConfig) *memConfigRepo {
	r := &memConfigRepo{configs: make(map[int64]*domain.HarvesterConfig)}
	for _, c := range cfgs {
		r.configs[c.ID] = c
		if c.ID > r.nextID {
			r.nextID = c.ID
		}
	}
	return r
}

func clone(c *domain.HarvesterConfig) *domain.HarvesterConfig {
	cp := *c
	return &cp
}

func (r *memConfigRepo) Create(_ context.Context, cfg *domain.HarvesterConfig) (*domain.HarvesterConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := clone(cfg)
	c.ID = r.nextID
	r.configs[c.ID] = c
	return clone(c), nil
}

func (r *memConfigRepo) Update(_ context.Context, cfg *domain.HarvesterConfig) (*domain.HarvesterConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[cfg.ID]; !ok {
		return nil, gorm.ErrRecordNotFound
	}
	r.configs[cfg.ID] = clone(cfg)
	return clone(cfg), nil
}

func (r *memConfigRepo) GetByID(_ context.Context, id int64) (*domain.HarvesterConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return clone(c), nil
}

func (r *memConfigRepo) List(_ context.Context, protocol domain.Protocol, start, limit int) ([]*domain.HarvesterConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.HarvesterConfig
	for _, c := range r.configs {
		if c.Protocol == protocol {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if start >= len(out) {
		return []*domain.HarvesterConfig{}, nil
	}
	out = out[start:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memConfigRepo) ListEnabled(_ context.Context) ([]*domain.HarvesterConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.HarvesterConfig
	for _, c := range r.configs {
		if c.Enabled {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memConfigRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.configs, id)
	return nil
}

func (r *memConfigRepo) SetEnabled(_ context.Context, id int64, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.Enabled = enabled
	return nil
}

func (r *memConfigRepo) CommitSeqno(_ context.Context, id int64, seqno int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, seqno)
	if c, ok := r.configs[id]; ok && seqno > c.Seqno {
		c.Seqno = seqno
	}
	return nil
}

func (r *memConfigRepo) MarkHarvested(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.configs[id]; ok {
		c.LastHarvested = &at
	}
	return nil
}

func (r *memConfigRepo) get(id int64) *domain.HarvesterConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.configs[id])
}

// memRunRepo 内存运行历史仓储
type memRunRepo struct {
	domain.HarvestRunRepository

	mu   sync.Mutex
	runs []*domain.HarvestRun
	done chan *domain.HarvestRun
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{done: make(chan *domain.HarvestRun, 16)}
}

func (r *memRunRepo) Create(_ context.Context, run *domain.HarvestRun) (*domain.HarvestRun, error) {
	r.mu.Lock()
	run.ID = int64(len(r.runs) + 1)
	r.runs = append(r.runs, run)
	r.mu.Unlock()
	r.done <- run
	return run, nil
}

func (r *memRunRepo) ListByConfig(_ context.Context, configID int64, page, pageSize int) ([]*domain.HarvestRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.HarvestRun
	for _, run := range r.runs {
		if run.ConfigID == configID {
			out = append(out, run)
		}
	}
	return out, nil
}

func (r *memRunRepo) CountByConfig(ctx context.Context, configID int64) (int64, error) {
	list, _ := r.ListByConfig(ctx, configID, 1, 0)
	return int64(len(list)), nil
}

func (r *memRunRepo) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*domain.HarvestRun
	var n int64
	for _, run := range r.runs {
		if run.StartedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, run)
	}
	r.runs = kept
	return n, nil
}

// gatedLister lists fixed files; each Open waits for gate to close
type gatedLister struct {
	files map[string]string
	gate  chan struct{}
}

func (l *gatedLister) List(context.Context) ([]*harvest.RemoteFile, error) {
	var out []*harvest.RemoteFile
	for name, content := range l.files {
		content := content
		out = append(out, harvest.NewRemoteFile(name, int64(len(content)), time.Time{}, func(ctx context.Context) (io.ReadCloser, error) {
			if l.gate != nil {
				select {
				case <-l.gate:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			return io.NopCloser(bytes.NewReader([]byte(content))), nil
		}))
	}
	return out, nil
}

func (l *gatedLister) Close() error { return nil }

// slowListLister blocks List until release closes or ctx ends
type slowListLister struct {
	gatedLister
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (l *slowListLister) List(ctx context.Context) ([]*harvest.RemoteFile, error) {
	l.once.Do(func() { close(l.started) })
	select {
	case <-l.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return l.gatedLister.List(ctx)
}

type listerFactory struct {
	lister harvest.Lister
	err    error
}

func (f *listerFactory) NewLister(context.Context, *domain.HarvesterConfig) (harvest.Lister, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lister, nil
}

// discardSink 丢弃写入内容的输出端
type discardSink struct {
	mu   sync.Mutex
	keys []string
}

func (s *discardSink) SendFile(_ context.Context, key string, r io.Reader, _ string, _ time.Time) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	return key, nil
}

func (s *discardSink) SendContent(_ context.Context, key string, _ []byte, _ time.Time) (string, error) {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	return key, nil
}

func (s *discardSink) Delete(context.Context, string) error { return nil }

// recordingNotifier 记录失败通知
type recordingNotifier struct {
	mu     sync.Mutex
	failed []string
	// gate 非空时通知阻塞到其关闭
	gate chan struct{}
}

func (n *recordingNotifier) NotifyFailure(_ *domain.HarvesterConfig, run *domain.HarvestRun) error {
	if n.gate != nil {
		<-n.gate
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, run.RunID)
	return nil
}

func (n *recordingNotifier) calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.failed...)
}

func ftpConfig(id int64) *domain.HarvesterConfig {
	return &domain.HarvesterConfig{
		ID:           id,
		Protocol:     domain.ProtocolFTP,
		Name:         "ftp harvest",
		Schedule:     "0 * * * *",
		Transfile:    "b=databroendpr3,m=ops@example.org",
		Seqno:        4622,
		SeqnoExtract: "2-3,6-7",
		Agency:       "010100",
		Enabled:      true,
		Ftp:          &domain.FtpPayload{Host: "ftp.example.org", Port: 21, FilesPattern: "v*.xml"},
	}
}
