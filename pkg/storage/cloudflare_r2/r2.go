// Package cloudflare_r2 delivers files to Cloudflare R2
package cloudflare_r2

import (
	"fmt"

	"github.com/haierkeys/harvester-service/pkg/storage/aws_s3"
)

type Config struct {
	AccountID       string `yaml:"account-id"`
	BucketName      string `yaml:"bucket-name"`
	AccessKeyID     string `yaml:"access-key-id"`
	AccessKeySecret string `yaml:"access-key-secret"`
	CustomPath      string `yaml:"custom-path"`
}

// NewClient 创建 R2 存储实例
func NewClient(conf *Config, opts ...aws_s3.Option) (*aws_s3.S3, error) {
	return aws_s3.NewClient(&aws_s3.Config{
		Region:          "auto",
		BucketName:      conf.BucketName,
		AccessKeyID:     conf.AccessKeyID,
		AccessKeySecret: conf.AccessKeySecret,
		CustomPath:      conf.CustomPath,
		Endpoint:        fmt.Sprintf("https://%s.r2.cloudflarestorage.com", conf.AccountID),
		Label:           "cloudflare_r2",
	}, opts...)
}
