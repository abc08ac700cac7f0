package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/aipower/api/handlers"
	"github.com/feichai0017/aipower/api/middleware"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	// 全局中间件
	r.Use(middleware.CORS())

	r.GET("/health", h.Health.Check)

	v1 := r.Group("/api/v1")

	// 知识库
	kb := v1.Group("/knowledge")
	{
		kb.POST("/upload", h.Knowledge.Upload)
		kb.POST("/crawl", h.Knowledge.Crawl)
		kb.GET("/documents", h.Knowledge.List)
		kb.GET("/documents/:id", h.Knowledge.Get)
		kb.GET("/documents/:id/content", h.Knowledge.GetContent)
		kb.GET("/documents/:id/chunks", h.Knowledge.GetChunks)
		kb.GET("/documents/:id/download", h.Knowledge.Download)
		kb.PUT("/documents/:id/tags", h.Knowledge.UpdateTags)
		kb.DELETE("/documents/:id", h.Knowledge.Delete)
		kb.DELETE("/documents", h.Knowledge.ClearAll)
		kb.GET("/stats", h.Knowledge.Stats)
	}

	// 问答
	v1.POST("/chat", h.Chat.Chat)

	// 模型管理与系统设置
	admin := v1.Group("/admin")
	{
		admin.GET("/models", h.Admin.ListModels)
		admin.GET("/models/active", h.Admin.GetActive)
		admin.POST("/models/active", h.Admin.SetActive)
		admin.POST("/models/pull", h.Admin.Pull)
		admin.GET("/models/pull/status", h.Admin.PullStatus)
		admin.DELETE("/models/:name", h.Admin.DeleteModel)
		admin.GET("/settings", h.Admin.GetSettings)
		admin.PUT("/settings", h.Admin.UpdateSettings)
	}
}
