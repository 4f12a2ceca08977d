// Package minio delivers files to a MinIO server through its S3 compatible API
package minio

import (
	"github.com/haierkeys/harvester-service/pkg/storage/aws_s3"
)

type Config struct {
	BucketName      string `yaml:"bucket-name"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access-key-id"`
	AccessKeySecret string `yaml:"access-key-secret"`
	CustomPath      string `yaml:"custom-path"`
}

// NewClient 创建 MinIO 存储实例（路径风格寻址）
func NewClient(conf *Config, opts ...aws_s3.Option) (*aws_s3.S3, error) {
	region := conf.Region
	if region == "" {
		region = "us-east-1"
	}
	return aws_s3.NewClient(&aws_s3.Config{
		Region:          region,
		BucketName:      conf.BucketName,
		AccessKeyID:     conf.AccessKeyID,
		AccessKeySecret: conf.AccessKeySecret,
		CustomPath:      conf.CustomPath,
		Endpoint:        conf.Endpoint,
		UsePathStyle:    true,
		Label:           "minio",
	}, opts...)
}
