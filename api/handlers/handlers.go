package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/aipower/internal/service/knowledge"
	"github.com/feichai0017/aipower/internal/store"
	"github.com/feichai0017/aipower/pkg/logger"
)

// Handlers 聚合全部 HTTP handler
type Handlers struct {
	Knowledge *KnowledgeHandler
	Chat      *ChatHandler
	Admin     *AdminHandler
	Health    *HealthHandler
}

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// handleError 按错误类型映射 HTTP 状态码
func handleError(c *gin.Context, log logger.Logger, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case knowledge.IsPermanent(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Message: err.Error()})
	default:
		var pde *knowledge.PartialDeleteError
		if errors.As(err, &pde) {
			failed := make(map[string]string, len(pde.Failed))
			for backend, ferr := range pde.Failed {
				failed[backend] = ferr.Error()
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "partial delete",
				"id":        pde.DocumentID,
				"failed":    failed,
				"succeeded": pde.Succeeded,
			})
			return
		}
		log.Error("request failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Message: err.Error()})
	}
}
