// Package storage delivers harvested files to the configured output sink
// Package storage 将采集到的文件投递到配置的输出端
package storage

import (
	"context"
	"io"
	"time"

	"github.com/haierkeys/harvester-service/pkg/code"
	"github.com/haierkeys/harvester-service/pkg/storage/aliyun_oss"
	"github.com/haierkeys/harvester-service/pkg/storage/aws_s3"
	"github.com/haierkeys/harvester-service/pkg/storage/cloudflare_r2"
	"github.com/haierkeys/harvester-service/pkg/storage/ftp"
	"github.com/haierkeys/harvester-service/pkg/storage/local_fs"
	"github.com/haierkeys/harvester-service/pkg/storage/minio"
	"github.com/haierkeys/harvester-service/pkg/storage/webdav"

	"go.uber.org/zap"
)

type Type = string

const (
	OSS    Type = "oss"
	R2     Type = "r2"
	S3     Type = "s3"
	LOCAL  Type = "localfs"
	MinIO  Type = "minio"
	WebDAV Type = "webdav"
	FTP    Type = "ftp"
)

var StorageTypeMap = map[Type]bool{
	OSS:    true,
	R2:     true,
	S3:     true,
	LOCAL:  true,
	MinIO:  true,
	WebDAV: true,
	FTP:    true,
}

// Config is the output section of the service configuration
// Config 输出端统一配置
type Config struct {
	Type      Type `yaml:"type" default:"localfs"`
	IsEnabled bool `yaml:"is-enable" default:"true"`
	// CustomPath 对象键前缀
	CustomPath string `yaml:"custom-path"`

	// Cloud Storage (S3/OSS/MinIO/R2)
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	BucketName      string `yaml:"bucket-name"`
	AccessKeyID     string `yaml:"access-key-id"`
	AccessKeySecret string `yaml:"access-key-secret"`
	AccountID       string `yaml:"account-id"`

	// WebDAV / FTP
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"`

	// Local FS
	SavePath string `yaml:"save-path" default:"storage/harvested"`
}

// Storager is implemented by every sink
type Storager interface {
	SendFile(ctx context.Context, pathKey string, file io.Reader, cType string, modTime time.Time) (string, error)
	SendContent(ctx context.Context, pathKey string, content []byte, modTime time.Time) (string, error)
	Delete(ctx context.Context, pathKey string) error
}

// NewClient builds the sink selected by config.Type
// NewClient 根据类型创建输出端
func NewClient(config *Config, logger *zap.Logger) (Storager, error) {
	if config == nil || !StorageTypeMap[config.Type] {
		return nil, code.ErrorInvalidStorageType
	}
	if !config.IsEnabled {
		return nil, code.ErrorStorageDisabled
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch config.Type {
	case LOCAL:
		return local_fs.NewClient(&local_fs.Config{
			SavePath:   config.SavePath,
			CustomPath: config.CustomPath,
		})
	case OSS:
		return aliyun_oss.NewClient(&aliyun_oss.Config{
			Endpoint:        config.Endpoint,
			BucketName:      config.BucketName,
			AccessKeyID:     config.AccessKeyID,
			AccessKeySecret: config.AccessKeySecret,
			CustomPath:      config.CustomPath,
		})
	case R2:
		return cloudflare_r2.NewClient(&cloudflare_r2.Config{
			AccountID:       config.AccountID,
			BucketName:      config.BucketName,
			AccessKeyID:     config.AccessKeyID,
			AccessKeySecret: config.AccessKeySecret,
			CustomPath:      config.CustomPath,
		}, aws_s3.WithLogger(logger))
	case S3:
		return aws_s3.NewClient(&aws_s3.Config{
			Region:          config.Region,
			BucketName:      config.BucketName,
			AccessKeyID:     config.AccessKeyID,
			AccessKeySecret: config.AccessKeySecret,
			CustomPath:      config.CustomPath,
		}, aws_s3.WithLogger(logger))
	case MinIO:
		return minio.NewClient(&minio.Config{
			Endpoint:        config.Endpoint,
			Region:          config.Region,
			BucketName:      config.BucketName,
			AccessKeyID:     config.AccessKeyID,
			AccessKeySecret: config.AccessKeySecret,
			CustomPath:      config.CustomPath,
		}, aws_s3.WithLogger(logger))
	case WebDAV:
		return webdav.NewClient(&webdav.Config{
			Endpoint:   config.Endpoint,
			Path:       config.Path,
			User:       config.User,
			Password:   config.Password,
			CustomPath: config.CustomPath,
		})
	case FTP:
		return ftp.NewClient(&ftp.Config{
			Host:     config.Host,
			Port:     config.Port,
			User:     config.User,
			Password: config.Password,
			Dir:      config.Path,
		}, logger), nil
	}
	return nil, code.ErrorInvalidStorageType
}
