package webdav

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/haierkeys/harvester-service/pkg/fileurl"

	"github.com/pkg/errors"
	"github.com/studio-b12/gowebdav"
)

// Config 结构体用于存储 WebDAV 连接信息。
type Config struct {
	Endpoint   string `yaml:"endpoint"`
	Path       string `yaml:"path"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	CustomPath string `yaml:"custom-path"`
}

// WebDAV 结构体表示 WebDAV 客户端。
type WebDAV struct {
	Client *gowebdav.Client
	Config *Config
}

var (
	clientsMu sync.Mutex
	clients   = make(map[string]*WebDAV)
)

// NewClient 创建一个新的 WebDAV 客户端实例。
func NewClient(conf *Config) (*WebDAV, error) {
	key := conf.Endpoint + conf.Path + conf.User + conf.CustomPath

	clientsMu.Lock()
	defer clientsMu.Unlock()
	if c, ok := clients[key]; ok {
		return c, nil
	}

	c := gowebdav.NewClient(conf.Endpoint, conf.User, conf.Password)
	if err := c.Connect(); err != nil {
		return nil, errors.Wrap(err, "webdav")
	}

	clients[key] = &WebDAV{Client: c, Config: conf}
	return clients[key], nil
}

func (w *WebDAV) remotePath(fileKey string) string {
	return path.Join("/", w.Config.Path, fileurl.JoinKey(w.Config.CustomPath, fileKey))
}

// SendFile 将文件流上传到 WebDAV 服务器
func (w *WebDAV) SendFile(ctx context.Context, fileKey string, file io.Reader, itype string, modTime time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst := w.remotePath(fileKey)
	if err := w.Client.MkdirAll(path.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "webdav")
	}
	if err := w.Client.WriteStream(dst, file, os.ModePerm); err != nil {
		return "", errors.Wrap(err, "webdav")
	}
	return dst, nil
}

// SendContent 将内容上传到 WebDAV 服务器
func (w *WebDAV) SendContent(ctx context.Context, fileKey string, content []byte, modTime time.Time) (string, error) {
	return w.SendFile(ctx, fileKey, bytes.NewReader(content), "", modTime)
}

func (w *WebDAV) Delete(ctx context.Context, fileKey string) error {
	return w.Client.Remove(w.remotePath(fileKey))
}
