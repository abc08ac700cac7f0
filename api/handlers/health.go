package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/aipower/pkg/logger"
)

// HealthCheck 单个依赖的探活函数
type HealthCheck func(ctx context.Context) error

// HealthHandler 依赖健康检查
type HealthHandler struct {
	checks map[string]HealthCheck
	log    logger.Logger
}

// NewHealthHandler 创建健康检查 handler
func NewHealthHandler(checks map[string]HealthCheck, log logger.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, log: log.Named("health")}
}

// Check 逐个探活依赖，任一失败整体 503
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = gin.H{"healthy": false, "error": err.Error()}
			status = http.StatusServiceUnavailable
			h.log.Warn("dependency unhealthy",
				logger.String("dependency", name),
				logger.Error(err),
			)
			continue
		}
		deps[name] = gin.H{"healthy": true}
	}

	c.JSON(status, gin.H{
		"status":       map[bool]string{true: "ok", false: "degraded"}[status == http.StatusOK],
		"dependencies": deps,
	})
}
