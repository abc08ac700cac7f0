package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/feichai0017/aipower/config"
	"github.com/feichai0017/aipower/pkg/logger"
)

var (
	client *Client
	once   sync.Once
)

// Client AWS S3 存储客户端
type Client struct {
	sc     *s3.Client
	bucket string
	log    logger.Logger
}

// GetClient 获取 S3 客户端单例
func GetClient(log logger.Logger) (*Client, error) {
	var initErr error
	once.Do(func() {
		cfg := config.GetS3Config()
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
			),
		)
		if err != nil {
			initErr = fmt.Errorf("failed to load aws config: %w", err)
			return
		}
		client = &Client{
			sc:     s3.NewFromConfig(awsCfg),
			bucket: cfg.BucketName,
			log:    log.Named("s3"),
		}
	})
	if initErr != nil {
		return nil, initErr
	}
	if client == nil {
		return nil, fmt.Errorf("s3 client not initialized")
	}
	return client, nil
}

// Store 按 key 上传文件
func (c *Client) Store(ctx context.Context, reader io.Reader, key string, size int64, contentType string) error {
	_, err := c.sc.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          reader,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to store object %s: %w", key, err)
	}
	return nil
}

// Get 下载文件
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := c.sc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("object %s not found: %w", key, err)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return out.Body, nil
}

// Delete 删除文件
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.sc.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}
