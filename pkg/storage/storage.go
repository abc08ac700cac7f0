package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/feichai0017/aipower/pkg/logger"
	"github.com/feichai0017/aipower/pkg/storage/minio"
	"github.com/feichai0017/aipower/pkg/storage/s3"
)

// StorageType 定义存储类型
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

// Storage 原始文件的对象存储接口。key 由调用方生成（uuid+扩展名），
// 一个 document 对应一个 object。
type Storage interface {
	// Store 按 key 存储文件内容
	Store(ctx context.Context, reader io.Reader, key string, size int64, contentType string) error
	// Get 获取文件内容
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除文件
	Delete(ctx context.Context, key string) error
}

// NewStorage 创建存储实例的工厂方法
func NewStorage(storageType StorageType, log logger.Logger) (Storage, error) {
	switch storageType {
	case StorageTypeS3:
		return s3.GetClient(log)
	case StorageTypeMinio:
		return minio.GetClient(log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
