package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/aipower/internal/models"
	"github.com/feichai0017/aipower/internal/service/chat"
	"github.com/feichai0017/aipower/pkg/logger"
)

// ChatHandler RAG 问答接口
type ChatHandler struct {
	svc *chat.Service
	log logger.Logger
}

// NewChatHandler 创建问答 handler
func NewChatHandler(svc *chat.Service, log logger.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, log: log.Named("chat_handler")}
}

type chatRequest struct {
	Messages []models.ChatMessage `json:"messages" binding:"required"`
	UseRAG   *bool                `json:"use_rag"`
	Stream   bool                 `json:"stream"`
}

// Chat 问答入口，stream=true 时走 SSE
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "messages are required"})
		return
	}
	useRAG := true
	if req.UseRAG != nil {
		useRAG = *req.UseRAG
	}

	if req.Stream {
		h.stream(c, req.Messages, useRAG)
		return
	}

	result, err := h.svc.Chat(c.Request.Context(), req.Messages, useRAG)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// stream 把事件流写成 SSE。事件类型作为 SSE event 名，payload 为 JSON。
func (h *ChatHandler) stream(c *gin.Context, messages []models.ChatMessage, useRAG bool) {
	events, err := h.svc.ChatStream(c.Request.Context(), messages, useRAG)
	if err != nil {
		handleError(c, h.log, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.Flush()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			h.log.Error("failed to marshal chat event", logger.Error(err))
			return
		}
		c.SSEvent(ev.Type, string(data))
		c.Writer.Flush()
		if ev.Type == models.EventDone || ev.Type == models.EventError {
			return
		}
	}
}
