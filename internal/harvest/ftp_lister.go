package harvest

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/pkg/logger"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"
)

// ftpLister 在一个 FTP 会话上列举并逐个下载文件
type ftpLister struct {
	payload *domain.FtpPayload
	conn    *ftp.ServerConn
	logger  *zap.Logger

	// 同一控制连接上同时只能有一个数据传输
	mu sync.Mutex
}

func dialFTP(ctx context.Context, p *domain.FtpPayload, dialer proxy.ContextDialer, timeout time.Duration, lg *zap.Logger) (*ftpLister, error) {
	port := p.Port
	if port == 0 {
		port = domain.DefaultFtpPort
	}
	addr := net.JoinHostPort(p.Host, strconv.Itoa(port))

	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(timeout),
		ftp.DialWithDialFunc(func(network, address string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, address)
		}),
	)
	if err != nil {
		return nil, transportErr(domain.ProtocolFTP, "dial", addr, err)
	}

	user, password := p.Username, p.Password
	if user == "" {
		user, password = "anonymous", "anonymous"
	}
	if err := conn.Login(user, password); err != nil {
		_ = conn.Quit()
		return nil, transportErr(domain.ProtocolFTP, "login", addr, err)
	}
	if p.Dir != "" {
		if err := conn.ChangeDir(p.Dir); err != nil {
			_ = conn.Quit()
			return nil, transportErr(domain.ProtocolFTP, "cd", p.Dir, err)
		}
	}
	return &ftpLister{payload: p, conn: conn, logger: lg}, nil
}

func (l *ftpLister) List(ctx context.Context) ([]*RemoteFile, error) {
	start := time.Now()
	l.mu.Lock()
	entries, err := l.conn.List("")
	l.mu.Unlock()
	if err != nil {
		return nil, transportErr(domain.ProtocolFTP, "list", l.payload.Dir, err)
	}

	files := make([]*RemoteFile, 0, len(entries))
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile || e.Name == "" {
			continue
		}
		name := e.Name
		files = append(files, NewRemoteFile(name, int64(e.Size), e.Time, func(ctx context.Context) (io.ReadCloser, error) {
			return l.retr(ctx, name)
		}))
	}
	l.logger.Info("listing done",
		zap.String("host", l.payload.Host),
		zap.String("dir", l.payload.Dir),
		zap.Int("files", len(files)),
		zap.Duration(logger.FieldDuration, time.Since(start)))
	return files, nil
}

func (l *ftpLister) retr(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	resp, err := l.conn.Retr(name)
	if err != nil {
		l.mu.Unlock()
		return nil, transportErr(domain.ProtocolFTP, "retr", name, err)
	}
	return &ftpBody{ctxReader: ctxReader{ctx: ctx, r: resp}, resp: resp, unlock: l.mu.Unlock}, nil
}

func (l *ftpLister) Close() error {
	return l.conn.Quit()
}

// ftpBody 关闭数据连接后释放控制连接
type ftpBody struct {
	ctxReader
	resp   *ftp.Response
	unlock func()
	once   sync.Once
}

func (b *ftpBody) Close() error {
	var err error
	b.once.Do(func() {
		err = b.resp.Close()
		b.unlock()
	})
	return err
}
