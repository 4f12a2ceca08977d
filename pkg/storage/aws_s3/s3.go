package aws_s3

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Config struct {
	Region          string `yaml:"region"`
	BucketName      string `yaml:"bucket-name"`
	AccessKeyID     string `yaml:"access-key-id"`
	AccessKeySecret string `yaml:"access-key-secret"`
	CustomPath      string `yaml:"custom-path"`

	// S3 兼容服务（MinIO / R2）
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use-path-style"`
	// Label 用于错误信息
	Label string `yaml:"-"`
}

// S3 uploads through the transfer manager so large harvests are sent as multipart uploads
// S3 通过 transfermanager 上传，大文件自动分片
type S3 struct {
	S3Client        *s3.Client
	TransferManager *transfermanager.Client
	Config          *Config
	logger          *zap.Logger
}

// Option 配置选项函数类型
type Option func(*S3)

// WithLogger 设置日志器
func WithLogger(logger *zap.Logger) Option {
	return func(s *S3) {
		s.logger = logger
	}
}

var (
	clientsMu sync.Mutex
	clients   = make(map[string]*S3)
)

// NewClient 创建 S3 存储实例，相同端点与密钥复用同一客户端
func NewClient(conf *Config, opts ...Option) (*S3, error) {
	if conf.Label == "" {
		conf.Label = "aws_s3"
	}
	cacheKey := conf.Endpoint + "|" + conf.AccessKeyID + "|" + conf.BucketName

	clientsMu.Lock()
	defer clientsMu.Unlock()

	if c, ok := clients[cacheKey]; ok {
		for _, opt := range opts {
			opt(c)
		}
		return c, nil
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(conf.AccessKeyID, conf.AccessKeySecret, "")),
		config.WithRegion(conf.Region),
	)
	if err != nil {
		return nil, errors.Wrap(err, conf.Label)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
		}
		o.UsePathStyle = conf.UsePathStyle
	})

	c := &S3{
		S3Client:        client,
		TransferManager: transfermanager.New(client),
		Config:          conf,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	clients[cacheKey] = c
	return c, nil
}
