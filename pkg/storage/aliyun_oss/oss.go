package aliyun_oss

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/haierkeys/harvester-service/pkg/fileurl"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"
)

type Config struct {
	Endpoint        string `yaml:"endpoint"`
	BucketName      string `yaml:"bucket-name"`
	AccessKeyID     string `yaml:"access-key-id"`
	AccessKeySecret string `yaml:"access-key-secret"`
	CustomPath      string `yaml:"custom-path"`
}

// OSS 阿里云对象存储
type OSS struct {
	Client *oss.Client
	Bucket *oss.Bucket
	Config *Config
}

func NewClient(conf *Config) (*OSS, error) {
	client, err := oss.New(conf.Endpoint, conf.AccessKeyID, conf.AccessKeySecret)
	if err != nil {
		return nil, errors.Wrap(err, "aliyun_oss")
	}
	bucket, err := client.Bucket(conf.BucketName)
	if err != nil {
		return nil, errors.Wrap(err, "aliyun_oss")
	}
	return &OSS{Client: client, Bucket: bucket, Config: conf}, nil
}

func (p *OSS) options(ctx context.Context, itype string, modTime time.Time) []oss.Option {
	opts := []oss.Option{oss.WithContext(ctx)}
	if itype != "" {
		opts = append(opts, oss.ContentType(itype))
	}
	if !modTime.IsZero() {
		opts = append(opts, oss.Meta("modification-time", modTime.Format(time.RFC3339)))
	}
	return opts
}

func (p *OSS) SendFile(ctx context.Context, fileKey string, file io.Reader, itype string, modTime time.Time) (string, error) {
	fileKey = fileurl.JoinKey(p.Config.CustomPath, fileKey)
	if err := p.Bucket.PutObject(fileKey, file, p.options(ctx, itype, modTime)...); err != nil {
		return "", errors.Wrap(err, "aliyun_oss")
	}
	return fileKey, nil
}

func (p *OSS) SendContent(ctx context.Context, fileKey string, content []byte, modTime time.Time) (string, error) {
	return p.SendFile(ctx, fileKey, bytes.NewReader(content), "", modTime)
}

func (p *OSS) Delete(ctx context.Context, fileKey string) error {
	fileKey = fileurl.JoinKey(p.Config.CustomPath, fileKey)
	if err := p.Bucket.DeleteObject(fileKey, oss.WithContext(ctx)); err != nil {
		return errors.Wrap(err, "aliyun_oss")
	}
	return nil
}
