package worker

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/aipower/pkg/logger"
)

// Worker 后台任务消费者
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
}

// BaseWorker asynq server 的公共骨架
type BaseWorker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	logger   logger.Logger
	stopChan chan struct{}
}

// Start 启动消费循环，阻塞到 server 退出
func (w *BaseWorker) Start(ctx context.Context) error {
	return w.server.Run(w.mux)
}

// Stop 优雅停止，等在途任务跑完
func (w *BaseWorker) Stop() error {
	close(w.stopChan)
	w.server.Shutdown()
	return nil
}
