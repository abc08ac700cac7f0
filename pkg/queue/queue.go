package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/aipower/config"
	"github.com/feichai0017/aipower/internal/models"
	"github.com/feichai0017/aipower/pkg/logger"
)

// 任务类型
const (
	TaskTypeIngestFile  = "ingest:file"
	TaskTypeIngestCrawl = "ingest:crawl"
)

// Client 摄取任务队列的生产者端，基于 asynq (Redis)
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	log       logger.Logger
}

// Stats 队列状态快照
type Stats struct {
	Pending   int `json:"pending"`
	Active    int `json:"active"`
	Retry     int `json:"retry"`
	Archived  int `json:"archived"`
	Completed int `json:"completed"`
}

// NewClient 创建队列客户端
func NewClient(log logger.Logger) *Client {
	cfg := config.GetRedisConfig()
	opt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		log:       log.Named("queue"),
	}
}

// Enqueue 将摄取任务入队。TaskID 取 document ID，避免同一文档重复排队。
func (c *Client) Enqueue(ctx context.Context, job *models.IngestionJob) error {
	job.EnqueuedAt = time.Now()
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	taskType := TaskTypeIngestFile
	if job.Operation == models.OpCrawlURL {
		taskType = TaskTypeIngestCrawl
	}

	cfg := config.GetRedisConfig()
	task := asynq.NewTask(taskType, payload)
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.TaskID(job.DocumentID),
		asynq.MaxRetry(cfg.MaxRetries),
		asynq.Timeout(cfg.ProcessTimeout),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.log.Info("enqueued ingestion task",
		logger.String("task_id", info.ID),
		logger.String("type", taskType),
		logger.String("queue", info.Queue),
	)
	return nil
}

// Stats 查询默认队列的状态
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	info, err := c.inspector.GetQueueInfo("default")
	if err != nil {
		return nil, fmt.Errorf("failed to get queue info: %w", err)
	}
	return &Stats{
		Pending:   info.Pending,
		Active:    info.Active,
		Retry:     info.Retry,
		Archived:  info.Archived,
		Completed: info.Completed,
	}, nil
}

// Close 关闭底层 Redis 连接
func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return err
	}
	return c.inspector.Close()
}
