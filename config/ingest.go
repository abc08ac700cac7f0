package config

import (
	"sync"
	"time"
)

var (
	ingestOnce   sync.Once
	ingestConfig *IngestConfig
)

// IngestConfig 文档处理管线参数
type IngestConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	MaxFileSize    int64
	TopK           int
	MinScore       float64
	EmbedBatchSize int
	StageTimeout   time.Duration
	CrawlMaxPages  int
	CrawlTimeout   time.Duration

	// failed 文档的保留期与清理周期
	CleanupInterval time.Duration
	FailedRetention time.Duration
}

func GetIngestConfig() *IngestConfig {
	ingestOnce.Do(func() {
		loadEnv()

		ingestConfig = &IngestConfig{
			ChunkSize:      getEnvInt("CHUNK_SIZE", 1000),
			ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 200),
			MaxFileSize:    int64(getEnvInt("MAX_UPLOAD_SIZE", 50*1024*1024)),
			TopK:           getEnvInt("RETRIEVAL_TOP_K", 5),
			MinScore:       float64(getEnvInt("RETRIEVAL_MIN_SCORE_PCT", 30)) / 100,
			EmbedBatchSize: getEnvInt("EMBED_BATCH_SIZE", 16),
			StageTimeout:   getEnvDuration("STAGE_TIMEOUT", 10*time.Minute),
			CrawlMaxPages:  getEnvInt("CRAWL_MAX_PAGES", 50),
			CrawlTimeout:   getEnvDuration("CRAWL_TIMEOUT", 30*time.Second),

			CleanupInterval: getEnvDuration("CLEANUP_INTERVAL", time.Hour),
			FailedRetention: getEnvDuration("FAILED_RETENTION", 24*time.Hour),
		}
	})
	return ingestConfig
}
