package local_fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/haierkeys/harvester-service/pkg/fileurl"

	"github.com/pkg/errors"
)

type Config struct {
	SavePath   string `yaml:"save-path" default:"storage/harvested"`
	CustomPath string `yaml:"custom-path"`
}

// LocalFS writes delivered files below SavePath
// LocalFS 将文件写入本地目录
type LocalFS struct {
	Config *Config
}

func NewClient(conf *Config) (*LocalFS, error) {
	if conf.SavePath == "" {
		return nil, errors.New("local_fs: save path is empty")
	}
	return &LocalFS{Config: conf}, nil
}

// ErrOutsideSavePath 文件键解析后位于保存目录之外
var ErrOutsideSavePath = errors.New("local_fs: key resolves outside the save path")

func (p *LocalFS) savePath(fileKey string) (string, error) {
	root := filepath.Clean(p.Config.SavePath)
	dst := filepath.Join(root, filepath.FromSlash(fileurl.JoinKey(p.Config.CustomPath, fileKey)))
	rel, err := filepath.Rel(root, dst)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Wrapf(ErrOutsideSavePath, "%q", fileKey)
	}
	return dst, nil
}

// SendFile writes to a temporary file first and renames it, readers never see a partial file
// SendFile 先写临时文件再重命名，读取方不会看到不完整的文件
func (p *LocalFS) SendFile(ctx context.Context, fileKey string, file io.Reader, itype string, modTime time.Time) (string, error) {
	dst, err := p.savePath(fileKey)
	if err != nil {
		return "", err
	}
	if err := fileurl.CreatePath(dst, os.ModePerm); err != nil {
		return "", errors.Wrap(err, "local_fs")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".harvest-*")
	if err != nil {
		return "", errors.Wrap(err, "local_fs")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err = io.Copy(tmp, &ctxReader{ctx: ctx, r: file}); err != nil {
		tmp.Close()
		return "", errors.Wrap(err, "local_fs")
	}
	if err = tmp.Close(); err != nil {
		return "", errors.Wrap(err, "local_fs")
	}
	if err = os.Rename(tmpName, dst); err != nil {
		return "", errors.Wrap(err, "local_fs")
	}

	if !modTime.IsZero() {
		_ = os.Chtimes(dst, modTime, modTime)
	}
	return dst, nil
}

func (p *LocalFS) SendContent(ctx context.Context, fileKey string, content []byte, modTime time.Time) (string, error) {
	dst, err := p.savePath(fileKey)
	if err != nil {
		return "", err
	}
	if err := fileurl.CreatePath(dst, os.ModePerm); err != nil {
		return "", errors.Wrap(err, "local_fs")
	}
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return "", errors.Wrap(err, "local_fs")
	}
	if !modTime.IsZero() {
		_ = os.Chtimes(dst, modTime, modTime)
	}
	return dst, nil
}

func (p *LocalFS) Delete(ctx context.Context, fileKey string) error {
	dst, err := p.savePath(fileKey)
	if err != nil {
		return err
	}
	if fileurl.IsExist(dst) {
		return os.Remove(dst)
	}
	return nil
}

// ctxReader stops copying once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}
