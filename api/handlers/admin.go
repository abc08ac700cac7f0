package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/aipower/internal/models"
	"github.com/feichai0017/aipower/internal/service/model"
	"github.com/feichai0017/aipower/pkg/logger"
)

// SettingsStore 系统设置的读写
type SettingsStore interface {
	ListSettings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// AdminHandler 模型管理与系统设置接口
type AdminHandler struct {
	svc      *model.Service
	settings SettingsStore
	log      logger.Logger
}

// NewAdminHandler 创建管理 handler
func NewAdminHandler(svc *model.Service, settings SettingsStore, log logger.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, settings: settings, log: log.Named("admin_handler")}
}

// ListModels 已安装模型列表
func (h *AdminHandler) ListModels(c *gin.Context) {
	infos, err := h.svc.ListModels(c.Request.Context())
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	if infos == nil {
		infos = []models.ModelInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"models": infos})
}

// GetActive 当前激活模型
func (h *AdminHandler) GetActive(c *gin.Context) {
	name, err := h.svc.GetActive(c.Request.Context())
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"model": name})
}

type setActiveRequest struct {
	Model string `json:"model" binding:"required"`
}

// SetActive 切换激活模型
func (h *AdminHandler) SetActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	if err := h.svc.SetActive(c.Request.Context(), req.Model); err != nil {
		if errors.Is(err, model.ErrModelNotInstalled) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "model not installed", Message: err.Error()})
			return
		}
		handleError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"model": req.Model})
}

type pullRequest struct {
	Model string `json:"model" binding:"required"`
}

// Pull 拉取模型，进度以 SSE 推送
func (h *AdminHandler) Pull(c *gin.Context) {
	var req pullRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.Flush()

	err := h.svc.Pull(c.Request.Context(), req.Model, func(p *models.PullProgress) error {
		data, merr := json.Marshal(p)
		if merr != nil {
			return merr
		}
		c.SSEvent("progress", string(data))
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		data, _ := json.Marshal(gin.H{"error": err.Error()})
		c.SSEvent("error", string(data))
		c.Writer.Flush()
		return
	}
	c.SSEvent("done", "{}")
	c.Writer.Flush()
}

// PullStatus 断线重连后的进度查询
func (h *AdminHandler) PullStatus(c *gin.Context) {
	name := c.Query("model")
	if name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "model query parameter is required"})
		return
	}
	progress, err := h.svc.PullStatus(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, model.ErrPullNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "no pull in progress", Message: err.Error()})
			return
		}
		handleError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// DeleteModel 删除模型
func (h *AdminHandler) DeleteModel(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("name")); err != nil {
		handleError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("name")})
}

// GetSettings 系统设置
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.settings.ListSettings(c.Request.Context())
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// UpdateSettings 更新系统设置
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	for key, value := range req {
		if err := h.settings.SetSetting(c.Request.Context(), key, value); err != nil {
			handleError(c, h.log, err)
			return
		}
	}
	settings, err := h.settings.ListSettings(c.Request.Context())
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}
