package config

import (
	"sync"
)

var (
	minioOnce   sync.Once
	minioConfig *MinioConfig
)

type MinioConfig struct {
	AccessKey  string
	SecretKey  string
	Endpoint   string
	UseSSL     bool
	Region     string
	BucketName string
}

func GetMinioConfig() *MinioConfig {
	minioOnce.Do(func() {
		loadEnv()

		minioConfig = &MinioConfig{
			AccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin123"),
			Endpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
			UseSSL:     getEnvBool("MINIO_USE_SSL", false),
			Region:     getEnv("MINIO_REGION", ""),
			BucketName: getEnv("MINIO_BUCKET_NAME", "documents"),
		}
	})
	return minioConfig
}
