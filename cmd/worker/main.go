package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feichai0017/aipower/config"
	"github.com/feichai0017/aipower/internal/crawler"
	"github.com/feichai0017/aipower/internal/extractor"
	"github.com/feichai0017/aipower/internal/ocr"
	"github.com/feichai0017/aipower/internal/service/knowledge"
	"github.com/feichai0017/aipower/internal/store"
	"github.com/feichai0017/aipower/internal/vector"
	"github.com/feichai0017/aipower/pkg/logger"
	"github.com/feichai0017/aipower/pkg/ollama"
	"github.com/feichai0017/aipower/pkg/queue"
	"github.com/feichai0017/aipower/pkg/storage"
	"github.com/feichai0017/aipower/pkg/worker"
)

func main() {
	srvCfg := config.GetServerConfig()

	log, err := logger.NewLogger(
		logger.WithLevel(srvCfg.LogLevel),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	metaStore, err := store.New(ctx, log)
	if err != nil {
		log.Fatal("Failed to init metadata store:", logger.Error(err))
	}
	defer metaStore.Close()

	vectorIndex, err := vector.New(ctx, log)
	if err != nil {
		log.Fatal("Failed to init vector index:", logger.Error(err))
	}
	defer vectorIndex.Close()

	blobStore, err := storage.NewStorage(storage.StorageType(srvCfg.StorageType), log)
	if err != nil {
		log.Fatal("Failed to init blob storage:", logger.Error(err))
	}

	taskQueue := queue.NewClient(log)
	defer taskQueue.Close()

	ocrEngine, err := ocr.NewEngine(ctx, log)
	if err != nil {
		log.Fatal("Failed to init ocr engine:", logger.Error(err))
	}

	knowledgeSvc := knowledge.NewService(metaStore, vectorIndex, blobStore, taskQueue,
		ollama.NewClient(log), extractor.NewRegistry(ocrEngine, log), crawler.New(log), log)

	w := worker.NewIngestWorker(knowledgeSvc, log)

	// 定期清理超过保留期的 failed 文档
	janitorCtx, cancelJanitor := context.WithCancel(ctx)
	defer cancelJanitor()
	go func() {
		ingestCfg := config.GetIngestConfig()
		ticker := time.NewTicker(ingestCfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-janitorCtx.Done():
				return
			case <-ticker.C:
				threshold := time.Now().Add(-ingestCfg.FailedRetention)
				if _, err := knowledgeSvc.CleanupFailedBefore(janitorCtx, threshold); err != nil {
					log.Error("Cleanup pass failed:", logger.Error(err))
				}
			}
		}
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down worker...")
		if err := w.Stop(); err != nil {
			log.Error("Worker shutdown error:", logger.Error(err))
		}
	}()

	log.Info("Worker starting",
		logger.Int("concurrency", config.GetRedisConfig().Concurrency),
	)
	if err := w.Start(ctx); err != nil {
		log.Fatal("Worker exited:", logger.Error(err))
	}
}
