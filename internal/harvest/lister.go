package harvest

import (
	"context"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/haierkeys/harvester-service/internal/domain"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"
)

// RemoteFile is one entry found on the remote side of a harvester.
// RemoteFile 远端条目
type RemoteFile struct {
	Name    string
	Size    int64 // -1 表示未知
	ModTime time.Time

	open func(ctx context.Context) (io.ReadCloser, error)
}

// Open starts the download of the entry.
func (f *RemoteFile) Open(ctx context.Context) (io.ReadCloser, error) {
	if f.open == nil {
		return nil, errors.Errorf("remote file %s cannot be opened", f.Name)
	}
	return f.open(ctx)
}

// NewRemoteFile 构造一个远端条目，open 负责建立下载流
func NewRemoteFile(name string, size int64, modTime time.Time, open func(ctx context.Context) (io.ReadCloser, error)) *RemoteFile {
	return &RemoteFile{Name: name, Size: size, ModTime: modTime, open: open}
}

// Lister enumerates the remote entries of one harvester config.
// The returned files stay readable until Close.
type Lister interface {
	List(ctx context.Context) ([]*RemoteFile, error)
	Close() error
}

// ListerFactory 根据配置协议创建 Lister
type ListerFactory interface {
	NewLister(ctx context.Context, cfg *domain.HarvesterConfig) (Lister, error)
}

// Options 远端连接参数，对应配置文件 harvest.transport
type Options struct {
	// Proxy SOCKS5 代理地址，例如 socks5://proxy:1080
	Proxy string `yaml:"proxy"`
	// NonProxyHosts 不走代理的主机，支持域名后缀与 CIDR
	NonProxyHosts []string `yaml:"non-proxy-hosts"`
	// DialTimeout 建立连接超时
	DialTimeout time.Duration `yaml:"dial-timeout" default:"30s"`
	// HTTPRetries HTTP 在 404/500/502 时的重试次数
	HTTPRetries int `yaml:"http-retries" default:"6"`
	// HTTPRetryDelay HTTP 重试间隔
	HTTPRetryDelay time.Duration `yaml:"http-retry-delay" default:"10s"`
	// KnownHostsFile SFTP 主机指纹文件，为空时不校验主机指纹
	KnownHostsFile string `yaml:"known-hosts-file"`
}

// Transports is the default ListerFactory.
// Transports 默认的 Lister 工厂
type Transports struct {
	opts   Options
	dialer proxy.ContextDialer
	logger *zap.Logger
	now    func() time.Time
}

// NewTransports 创建 Lister 工厂，解析代理设置
func NewTransports(opts Options, logger *zap.Logger) (*Transports, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 30 * time.Second
	}
	if opts.HTTPRetries < 0 {
		opts.HTTPRetries = 0
	}
	dialer, err := newDialer(opts)
	if err != nil {
		return nil, err
	}
	return &Transports{opts: opts, dialer: dialer, logger: logger, now: time.Now}, nil
}

func newDialer(opts Options) (proxy.ContextDialer, error) {
	direct := &net.Dialer{Timeout: opts.DialTimeout, KeepAlive: 30 * time.Second}
	if strings.TrimSpace(opts.Proxy) == "" {
		return direct, nil
	}

	u, err := url.Parse(opts.Proxy)
	if err != nil {
		return nil, errors.Wrapf(err, "parse proxy %q", opts.Proxy)
	}
	viaProxy, err := proxy.FromURL(u, direct)
	if err != nil {
		return nil, errors.Wrapf(err, "proxy %q", opts.Proxy)
	}
	if len(opts.NonProxyHosts) == 0 {
		if cd, ok := viaProxy.(proxy.ContextDialer); ok {
			return cd, nil
		}
		return nil, errors.Errorf("proxy %q does not support contexts", opts.Proxy)
	}
	perHost := proxy.NewPerHost(viaProxy, direct)
	perHost.AddFromString(strings.Join(opts.NonProxyHosts, ","))
	return perHost, nil
}

// NewLister 按协议返回对应的 Lister
func (t *Transports) NewLister(ctx context.Context, cfg *domain.HarvesterConfig) (Lister, error) {
	if !cfg.HasPayload() {
		return nil, errors.Errorf("config %d has no %s payload", cfg.ID, cfg.Protocol)
	}
	switch cfg.Protocol {
	case domain.ProtocolHTTP:
		fetcher := t.httpFetcher(cfg.Http.HttpHeaders)
		if cfg.Http.ListFilesHandler == domain.ListFilesLitteratursiden {
			return newPagedLister(cfg.Http, fetcher, t.now, t.logger), nil
		}
		return newHTTPLister(cfg.Http, fetcher, t.now, t.logger), nil
	case domain.ProtocolFTP:
		return dialFTP(ctx, cfg.Ftp, t.dialer, t.opts.DialTimeout, t.logger)
	case domain.ProtocolSFTP:
		return dialSFTP(ctx, cfg.SFtp, t.dialer, t.opts.KnownHostsFile, t.logger)
	}
	return nil, errors.Errorf("unknown protocol %q", cfg.Protocol)
}

// pendingBody hands the body of a response made while listing to the first Open,
// later opens fetch again.
type pendingBody struct {
	mu   sync.Mutex
	body io.ReadCloser
}

func (p *pendingBody) take() io.ReadCloser {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.body
	p.body = nil
	return b
}

func (p *pendingBody) Close() error {
	if b := p.take(); b != nil {
		return b.Close()
	}
	return nil
}

// ctxReader 每次读取前检查 context，下载在块之间可被中止
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
