package minio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/feichai0017/aipower/config"
	"github.com/feichai0017/aipower/pkg/logger"
)

var (
	client *Client
	once   sync.Once
)

// Client MinIO 存储客户端
type Client struct {
	mc     *minio.Client
	bucket string
	log    logger.Logger
}

// GetClient 获取 MinIO 客户端单例
func GetClient(log logger.Logger) (*Client, error) {
	var initErr error
	once.Do(func() {
		cfg := config.GetMinioConfig()
		mc, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			initErr = fmt.Errorf("failed to create minio client: %w", err)
			return
		}
		client = &Client{
			mc:     mc,
			bucket: cfg.BucketName,
			log:    log.Named("minio"),
		}
		if err := client.ensureBucket(context.Background()); err != nil {
			initErr = err
			client = nil
		}
	})
	if initErr != nil {
		return nil, initErr
	}
	if client == nil {
		return nil, fmt.Errorf("minio client not initialized")
	}
	return client, nil
}

func (c *Client) ensureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", c.bucket, err)
	}
	if !exists {
		if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", c.bucket, err)
		}
		c.log.Info("created bucket", logger.String("bucket", c.bucket))
	}
	return nil
}

// Store 按 key 上传文件
func (c *Client) Store(ctx context.Context, reader io.Reader, key string, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := c.mc.PutObject(ctx, c.bucket, key, reader, size, opts); err != nil {
		return fmt.Errorf("failed to store object %s: %w", key, err)
	}
	c.log.Debug("stored object",
		logger.String("key", key),
		logger.Int64("size", size),
	)
	return nil
}

// Get 下载文件
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	// GetObject 是惰性的，Stat 一次确认对象存在
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return obj, nil
}

// Delete 删除文件
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.mc.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}
