// Package ftp delivers harvested files to a remote FTP server
// Package ftp 将采集文件发送到远端 FTP 服务器
package ftp

import (
	"bytes"
	"context"
	"io"
	"net"
	"path"
	"strconv"
	"time"

	jftp "github.com/jlaffaye/ftp"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Config struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port" default:"21"`
	User     string        `yaml:"user" default:"anonymous"`
	Password string        `yaml:"password"`
	Dir      string        `yaml:"dir"`
	Timeout  time.Duration `yaml:"timeout" default:"30s"`
}

// FTP opens one connection per delivery; harvest deliveries are sparse
// FTP 每次投递建立一次连接
type FTP struct {
	Config *Config
	logger *zap.Logger
}

func NewClient(conf *Config, logger *zap.Logger) *FTP {
	if conf.Port == 0 {
		conf.Port = 21
	}
	if conf.User == "" {
		conf.User = "anonymous"
	}
	if conf.Timeout == 0 {
		conf.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FTP{Config: conf, logger: logger}
}

func (f *FTP) connect(ctx context.Context) (*jftp.ServerConn, error) {
	addr := net.JoinHostPort(f.Config.Host, strconv.Itoa(f.Config.Port))
	conn, err := jftp.Dial(addr, jftp.DialWithContext(ctx), jftp.DialWithTimeout(f.Config.Timeout))
	if err != nil {
		return nil, errors.Wrapf(err, "ftp dial %s", addr)
	}
	if err = conn.Login(f.Config.User, f.Config.Password); err != nil {
		_ = conn.Quit()
		return nil, errors.Wrap(err, "ftp login")
	}
	return conn, nil
}

func (f *FTP) remotePath(fileKey string) string {
	if f.Config.Dir == "" {
		return fileKey
	}
	return path.Join(f.Config.Dir, fileKey)
}

// SendFile 上传文件流
func (f *FTP) SendFile(ctx context.Context, fileKey string, file io.Reader, itype string, modTime time.Time) (string, error) {
	conn, err := f.connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Quit()

	// 取消时关闭连接以中断传输
	stop := context.AfterFunc(ctx, func() { _ = conn.Quit() })
	defer stop()

	dst := f.remotePath(fileKey)
	if err = conn.Stor(dst, file); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Wrapf(err, "ftp stor %s", dst)
	}
	f.logger.Debug("ftp stored", zap.String("path", dst))
	return dst, nil
}

func (f *FTP) SendContent(ctx context.Context, fileKey string, content []byte, modTime time.Time) (string, error) {
	return f.SendFile(ctx, fileKey, bytes.NewReader(content), "", modTime)
}

func (f *FTP) Delete(ctx context.Context, fileKey string) error {
	conn, err := f.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit()
	return errors.Wrap(conn.Delete(f.remotePath(fileKey)), "ftp delete")
}
