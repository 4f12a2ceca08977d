package aws_s3

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/haierkeys/harvester-service/pkg/fileurl"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	tmtypes "github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (p *S3) objectKey(fileKey string) string {
	return fileurl.JoinKey(p.Config.CustomPath, fileKey)
}

// SendFile 上传文件流
func (p *S3) SendFile(ctx context.Context, fileKey string, file io.Reader, itype string, modTime time.Time) (string, error) {
	key := p.objectKey(fileKey)

	input := &transfermanager.UploadObjectInput{
		Bucket: aws.String(p.Config.BucketName),
		Key:    aws.String(key),
		Body:   file,
	}
	if itype != "" {
		input.ContentType = aws.String(itype)
	}
	if !modTime.IsZero() {
		input.Metadata = map[string]string{
			"modification-time": modTime.Format(time.RFC3339),
		}
	}

	if _, err := p.TransferManager.UploadObject(ctx, input); err != nil {
		return "", p.wrap(err)
	}
	return fileurl.PathSuffixCheckAdd(p.Config.BucketName, "/") + key, nil
}

// SendContent 上传内容
func (p *S3) SendContent(ctx context.Context, fileKey string, content []byte, modTime time.Time) (string, error) {
	key := p.objectKey(fileKey)

	input := &transfermanager.UploadObjectInput{
		Bucket:            aws.String(p.Config.BucketName),
		Key:               aws.String(key),
		Body:              bytes.NewReader(content),
		ChecksumAlgorithm: tmtypes.ChecksumAlgorithmSha256,
	}
	if !modTime.IsZero() {
		input.Metadata = map[string]string{
			"modification-time": modTime.Format(time.RFC3339),
		}
	}

	if _, err := p.TransferManager.UploadObject(ctx, input); err != nil {
		return "", p.wrap(err)
	}
	return fileurl.PathSuffixCheckAdd(p.Config.BucketName, "/") + key, nil
}

func (p *S3) Delete(ctx context.Context, fileKey string) error {
	_, err := p.S3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.Config.BucketName),
		Key:    aws.String(p.objectKey(fileKey)),
	})
	if err != nil {
		return p.wrap(err)
	}
	return nil
}

func (p *S3) wrap(err error) error {
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		p.logger.Error("bucket does not exist", zap.String("bucket", p.Config.BucketName))
	}
	return errors.Wrap(err, p.Config.Label)
}
