package config

import (
	"sync"
)

var (
	s3Once   sync.Once
	s3Config *S3Config
)

type S3Config struct {
	AccessKey  string
	SecretKey  string
	Region     string
	BucketName string
}

func GetS3Config() *S3Config {
	s3Once.Do(func() {
		loadEnv()

		s3Config = &S3Config{
			AccessKey:  getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Region:     getEnv("AWS_REGION", "us-east-1"),
			BucketName: getEnv("S3_BUCKET_NAME", "documents"),
		}
	})
	return s3Config
}
