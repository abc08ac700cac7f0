package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/aipower/config"
	"github.com/feichai0017/aipower/internal/models"
	"github.com/feichai0017/aipower/internal/service/knowledge"
	"github.com/feichai0017/aipower/pkg/logger"
	"github.com/feichai0017/aipower/pkg/queue"
)

// IngestWorker 文档摄取任务的消费者
type IngestWorker struct {
	BaseWorker
	svc *knowledge.Service
}

// NewIngestWorker 创建摄取 worker
func NewIngestWorker(svc *knowledge.Service, log logger.Logger) *IngestWorker {
	cfg := config.GetRedisConfig()
	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n+1) * cfg.RetryDelay
			},
			Logger: asynqLogger{log.Named("asynq")},
		},
	)

	w := &IngestWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log.Named("worker"),
			stopChan: make(chan struct{}),
		},
		svc: svc,
	}
	w.registerHandlers()
	return w
}

func (w *IngestWorker) registerHandlers() {
	w.mux.HandleFunc(queue.TaskTypeIngestFile, w.handleIngest)
	w.mux.HandleFunc(queue.TaskTypeIngestCrawl, w.handleIngest)
}

func (w *IngestWorker) handleIngest(ctx context.Context, t *asynq.Task) error {
	var job models.IngestionJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		w.logger.Error("failed to unmarshal job",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		// 坏 payload 重试也没用
		return fmt.Errorf("failed to unmarshal job: %v: %w", err, asynq.SkipRetry)
	}
	if job.DocumentID == "" {
		return fmt.Errorf("job missing document id: %w", asynq.SkipRetry)
	}

	w.logger.Info("processing ingestion task",
		logger.String("document_id", job.DocumentID),
		logger.String("operation", string(job.Operation)),
	)

	var err error
	switch job.Operation {
	case models.OpParseFile:
		err = w.svc.ProcessFileJob(ctx, &job)
	case models.OpCrawlURL:
		err = w.svc.ProcessCrawlJob(ctx, &job)
	default:
		return fmt.Errorf("unknown operation %q: %w", job.Operation, asynq.SkipRetry)
	}
	if err == nil {
		return nil
	}

	if knowledge.IsPermanent(err) {
		// 永久失败：标记终态，不再重试
		w.svc.MarkFailed(ctx, job.DocumentID, err.Error())
		w.logger.Warn("ingestion failed permanently",
			logger.String("document_id", job.DocumentID),
			logger.Error(err),
		)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	// 最后一次重试也失败才落 failed 终态
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	if retried >= maxRetry {
		w.svc.MarkFailed(ctx, job.DocumentID, err.Error())
		w.logger.Error("ingestion failed after all retries",
			logger.String("document_id", job.DocumentID),
			logger.Int("retries", retried),
			logger.Error(err),
		)
	} else {
		w.logger.Warn("ingestion failed, will retry",
			logger.String("document_id", job.DocumentID),
			logger.Int("attempt", retried),
			logger.Error(err),
		)
	}
	return err
}

// asynqLogger 把 asynq 内部日志接到统一日志
type asynqLogger struct {
	log logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal(fmt.Sprint(args...)) }
