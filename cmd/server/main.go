package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/aipower/api/handlers"
	"github.com/feichai0017/aipower/api/routes"
	"github.com/feichai0017/aipower/config"
	"github.com/feichai0017/aipower/internal/crawler"
	"github.com/feichai0017/aipower/internal/extractor"
	"github.com/feichai0017/aipower/internal/ocr"
	"github.com/feichai0017/aipower/internal/service/chat"
	"github.com/feichai0017/aipower/internal/service/knowledge"
	"github.com/feichai0017/aipower/internal/service/model"
	"github.com/feichai0017/aipower/internal/store"
	"github.com/feichai0017/aipower/internal/vector"
	"github.com/feichai0017/aipower/pkg/logger"
	"github.com/feichai0017/aipower/pkg/ollama"
	"github.com/feichai0017/aipower/pkg/queue"
	"github.com/feichai0017/aipower/pkg/storage"
)

func main() {
	srvCfg := config.GetServerConfig()

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(srvCfg.LogLevel),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/server.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	// init backends
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

	ollamaClient := ollama.NewClient(log)
	rdb := model.NewRedisClient()
	defer rdb.Close()

	ocrEngine, err := ocr.NewEngine(ctx, log)
	if err != nil {
		log.Fatal("Failed to init ocr engine:", logger.Error(err))
	}

	// init services
	knowledgeSvc := knowledge.NewService(metaStore, vectorIndex, blobStore, taskQueue,
		ollamaClient, extractor.NewRegistry(ocrEngine, log), crawler.New(log), log)
	modelSvc := model.NewService(ollamaClient, metaStore, rdb, log)
	chatSvc := chat.NewService(vectorIndex, ollamaClient, modelSvc, log)

	// init handlers
	h := &handlers.Handlers{
		Knowledge: handlers.NewKnowledgeHandler(knowledgeSvc, log),
		Chat:      handlers.NewChatHandler(chatSvc, log),
		Admin:     handlers.NewAdminHandler(modelSvc, metaStore, log),
		Health: handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"postgres": metaStore.Healthy,
			"vector":   vectorIndex.Healthy,
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
			"ollama": ollamaClient.Healthy,
		}, log),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h)

	srv := &http.Server{
		Addr:    srvCfg.Addr,
		Handler: r,
	}

	// start server
	go func() {
		log.Info("Server starting", logger.String("addr", srvCfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error:", logger.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown:", logger.Error(err))
	}
}
