package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/aipower/internal/models"
	"github.com/feichai0017/aipower/internal/service/knowledge"
	"github.com/feichai0017/aipower/pkg/logger"
)

// KnowledgeHandler 知识库管理接口
type KnowledgeHandler struct {
	svc *knowledge.Service
	log logger.Logger
}

// NewKnowledgeHandler 创建知识库 handler
func NewKnowledgeHandler(svc *knowledge.Service, log logger.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc, log: log.Named("knowledge_handler")}
}

// Upload 接收文件上传，返回 pending 状态的文档
func (h *KnowledgeHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid file upload", Message: err.Error()})
		return
	}
	defer file.Close()

	tags := parseTags(c.PostForm("tags"))
	doc, err := h.svc.Upload(c.Request.Context(), header.Filename,
		header.Header.Get("Content-Type"), header.Size, file, tags)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, doc)
}

type crawlRequest struct {
	URL         string   `json:"url" binding:"required"`
	FollowLinks bool     `json:"follow_links"`
	Tags        []string `json:"tags"`
}

// Crawl 接收网页摄取请求
func (h *KnowledgeHandler) Crawl(c *gin.Context) {
	var req crawlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	doc, err := h.svc.Crawl(c.Request.Context(), req.URL, req.FollowLinks, req.Tags)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, doc)
}

// List 列出文档
func (h *KnowledgeHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	status := models.DocumentStatus(c.Query("status"))

	docs, err := h.svc.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

// Get 查询单个文档
func (h *KnowledgeHandler) Get(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GetContent 取出已提取的全文
func (h *KnowledgeHandler) GetContent(c *gin.Context) {
	content, available, err := h.svc.GetContent(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	if !available {
		c.JSON(http.StatusOK, gin.H{"content": "", "available": false, "message": "content not available yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content, "available": true})
}

// GetChunks 取出文档的全部 chunk
func (h *KnowledgeHandler) GetChunks(c *gin.Context) {
	chunks, err := h.svc.GetChunks(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	if chunks == nil {
		chunks = []*models.Chunk{}
	}
	c.JSON(http.StatusOK, gin.H{"chunks": chunks, "count": len(chunks)})
}

// Download 下载原始文件
func (h *KnowledgeHandler) Download(c *gin.Context) {
	doc, rc, err := h.svc.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	c.Header("Content-Type", doc.ContentType)
	if doc.FileSize > 0 {
		c.Header("Content-Length", strconv.FormatInt(doc.FileSize, 10))
	}
	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.log.Error("download stream interrupted",
			logger.String("id", doc.ID),
			logger.Error(err),
		)
	}
}

type updateTagsRequest struct {
	Tags     []string               `json:"tags"`
	Metadata map[string]interface{} `json:"metadata"`
}

// UpdateTags 更新标签和元数据
func (h *KnowledgeHandler) UpdateTags(c *gin.Context) {
	var req updateTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	doc, err := h.svc.UpdateTags(c.Request.Context(), c.Param("id"), req.Tags, req.Metadata)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Delete 删除单个文档
func (h *KnowledgeHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

// ClearAll 清空知识库
func (h *KnowledgeHandler) ClearAll(c *gin.Context) {
	deleted, err := h.svc.ClearAll(c.Request.Context())
	resp := gin.H{"deleted": deleted}
	if err != nil {
		resp["failures"] = err.Error()
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Stats 知识库统计
func (h *KnowledgeHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func parseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var tags []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
