package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/aipower/config"
	"github.com/feichai0017/aipower/internal/crawler"
	"github.com/feichai0017/aipower/internal/extractor"
	"github.com/feichai0017/aipower/internal/models"
	"github.com/feichai0017/aipower/internal/store"
	"github.com/feichai0017/aipower/internal/vector"
	"github.com/feichai0017/aipower/pkg/logger"
	"github.com/feichai0017/aipower/pkg/queue"
)

// MetadataStore 文档元数据存储
type MetadataStore interface {
	CreateDocument(ctx context.Context, d *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, status models.DocumentStatus, limit, offset int) ([]*models.Document, error)
	UpdateDocument(ctx context.Context, id string, upd *models.DocumentUpdate) error
	DeleteDocument(ctx context.Context, id string) error
	ReplaceChunks(ctx context.Context, documentID string, chunks []*models.Chunk) error
	GetChunksByDocument(ctx context.Context, documentID string) ([]*models.Chunk, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// VectorIndex 向量索引
type VectorIndex interface {
	Add(ctx context.Context, entries []*vector.Entry) error
	DeleteByDocument(ctx context.Context, documentID string) error
	Count(ctx context.Context) (int, error)
}

// BlobStore 原始文件存储
type BlobStore interface {
	Store(ctx context.Context, reader io.Reader, key string, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// TaskQueue 摄取任务队列
type TaskQueue interface {
	Enqueue(ctx context.Context, job *models.IngestionJob) error
	Stats(ctx context.Context) (*queue.Stats, error)
}

// Embedder 向量化客户端
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// TextExtractor 文本提取入口
type TextExtractor interface {
	Extract(ctx context.Context, contentType string, data []byte) (*extractor.Result, error)
}

// PageCrawler 网页抓取入口
type PageCrawler interface {
	Crawl(ctx context.Context, rawURL string, followLinks bool) ([]crawler.Page, error)
}

// Service 知识库编排服务：上传、抓取、查询、删除与后台处理管线
type Service struct {
	meta    MetadataStore
	vectors VectorIndex
	blobs   BlobStore
	queue   TaskQueue
	embed   Embedder
	extract TextExtractor
	crawler PageCrawler
	log     logger.Logger
}

// NewService 创建知识库服务
func NewService(meta MetadataStore, vectors VectorIndex, blobs BlobStore, q TaskQueue,
	embed Embedder, extract TextExtractor, crawler PageCrawler, log logger.Logger) *Service {
	return &Service{
		meta:    meta,
		vectors: vectors,
		blobs:   blobs,
		queue:   q,
		embed:   embed,
		extract: extract,
		crawler: crawler,
		log:     log.Named("knowledge"),
	}
}

// Upload 接收上传文件：存入对象存储、创建 pending 记录、入队处理任务。
// 入队失败时回滚已写入的数据。
func (s *Service) Upload(ctx context.Context, name, contentType string, size int64, r io.Reader, tags []string) (*models.Document, error) {
	cfg := config.GetIngestConfig()
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Permanent(fmt.Errorf("file name is required"))
	}
	if size <= 0 || size > cfg.MaxFileSize {
		return nil, Permanent(fmt.Errorf("file size %d out of range (max %d)", size, cfg.MaxFileSize))
	}

	ext := strings.ToLower(filepath.Ext(name))
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			contentType = byExt
		}
	}

	id := uuid.NewString()
	objectKey := id + ext

	if err := s.blobs.Store(ctx, r, objectKey, size, contentType); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	doc := &models.Document{
		ID:          id,
		Name:        name,
		SourceKind:  models.SourceFile,
		ContentType: contentType,
		FileSize:    size,
		ObjectKey:   objectKey,
		Status:      models.StatusPending,
		Tags:        tags,
	}
	if err := s.meta.CreateDocument(ctx, doc); err != nil {
		s.cleanupBlob(ctx, objectKey)
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	job := &models.IngestionJob{
		DocumentID:  id,
		Operation:   models.OpParseFile,
		ObjectKey:   objectKey,
		FileName:    name,
		ContentType: contentType,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		// 回滚：任务入不了队，记录和文件都不保留
		if derr := s.meta.DeleteDocument(ctx, id); derr != nil {
			s.log.Error("failed to roll back document record", logger.String("id", id), logger.Error(derr))
		}
		s.cleanupBlob(ctx, objectKey)
		return nil, fmt.Errorf("failed to enqueue ingestion: %w", err)
	}

	s.log.Info("accepted upload",
		logger.String("id", id),
		logger.String("name", name),
		logger.Int64("size", size),
	)
	return doc, nil
}

// Crawl 接收网页摄取请求：创建 crawling 记录并入队抓取任务
func (s *Service) Crawl(ctx context.Context, rawURL string, followLinks bool, tags []string) (*models.Document, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, Permanent(fmt.Errorf("invalid url: %q", rawURL))
	}

	doc := &models.Document{
		ID:          uuid.NewString(),
		Name:        u.String(),
		SourceKind:  models.SourceWeb,
		ContentType: "text/html",
		Status:      models.StatusCrawling,
		Tags:        tags,
	}
	if err := s.meta.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	job := &models.IngestionJob{
		DocumentID:  doc.ID,
		Operation:   models.OpCrawlURL,
		URL:         u.String(),
		FollowLinks: followLinks,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		if derr := s.meta.DeleteDocument(ctx, doc.ID); derr != nil {
			s.log.Error("failed to roll back document record", logger.String("id", doc.ID), logger.Error(derr))
		}
		return nil, fmt.Errorf("failed to enqueue crawl: %w", err)
	}

	s.log.Info("accepted crawl", logger.String("id", doc.ID), logger.String("url", u.String()))
	return doc, nil
}

// List 列出文档
func (s *Service) List(ctx context.Context, status models.DocumentStatus, limit, offset int) ([]*models.Document, error) {
	return s.meta.ListDocuments(ctx, status, limit, offset)
}

// Get 按 ID 查询文档
func (s *Service) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.meta.GetDocument(ctx, id)
}

// GetContent 取出已提取的全文。文档尚未处理完成不是错误，
// 第二个返回值为 false 表示内容还不可用。
func (s *Service) GetContent(ctx context.Context, id string) (string, bool, error) {
	doc, err := s.meta.GetDocument(ctx, id)
	if err != nil {
		return "", false, err
	}
	if doc.Status != models.StatusCompleted {
		return "", false, nil
	}
	return doc.Content, true, nil
}

// GetChunks 取出文档的全部 chunk
func (s *Service) GetChunks(ctx context.Context, id string) ([]*models.Chunk, error) {
	if _, err := s.meta.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return s.meta.GetChunksByDocument(ctx, id)
}

// Download 取回原始文件
func (s *Service) Download(ctx context.Context, id string) (*models.Document, io.ReadCloser, error) {
	doc, err := s.meta.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if doc.ObjectKey == "" {
		return nil, nil, fmt.Errorf("document %s has no stored file", id)
	}
	rc, err := s.blobs.Get(ctx, doc.ObjectKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch file: %w", err)
	}
	return doc, rc, nil
}

// UpdateTags 更新标签和元数据
func (s *Service) UpdateTags(ctx context.Context, id string, tags []string, metadata map[string]interface{}) (*models.Document, error) {
	upd := &models.DocumentUpdate{}
	if tags != nil {
		upd.Tags = tags
	}
	if metadata != nil {
		upd.Metadata = metadata
	}
	if err := s.meta.UpdateDocument(ctx, id, upd); err != nil {
		return nil, err
	}
	return s.meta.GetDocument(ctx, id)
}

// Delete 删除文档的全部痕迹：向量、元数据、原始文件。
// 任何后端失败不会中断其他后端，失败集合通过 PartialDeleteError 返回。
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.meta.GetDocument(ctx, id)
	if err != nil {
		return err
	}

	failed := map[string]error{}
	var succeeded []string

	if err := s.vectors.DeleteByDocument(ctx, id); err != nil {
		failed["vector"] = err
	} else {
		succeeded = append(succeeded, "vector")
	}

	if err := s.meta.DeleteDocument(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		failed["metadata"] = err
	} else {
		succeeded = append(succeeded, "metadata")
	}

	if doc.ObjectKey != "" {
		if err := s.blobs.Delete(ctx, doc.ObjectKey); err != nil {
			failed["blob"] = err
		} else {
			succeeded = append(succeeded, "blob")
		}
	}

	if len(failed) > 0 {
		for backend, err := range failed {
			s.log.Error("delete backend failed",
				logger.String("id", id),
				logger.String("backend", backend),
				logger.Error(err),
			)
		}
		return &PartialDeleteError{DocumentID: id, Failed: failed, Succeeded: succeeded}
	}

	s.log.Info("deleted document", logger.String("id", id))
	return nil
}

// ClearAll 删除全部文档，单个失败不中断，返回删除数量与聚合错误
func (s *Service) ClearAll(ctx context.Context) (int, error) {
	docs, err := s.meta.ListDocuments(ctx, "", 10000, 0)
	if err != nil {
		return 0, err
	}
	var deleted int
	var errs []error
	for _, doc := range docs {
		if err := s.Delete(ctx, doc.ID); err != nil {
			errs = append(errs, fmt.Errorf("document %s: %w", doc.ID, err))
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// CleanupFailedBefore 清理 threshold 之前进入 failed 状态的文档，
// 连带删除其对象存储与向量残留。单个失败只记日志。
func (s *Service) CleanupFailedBefore(ctx context.Context, threshold time.Time) (int, error) {
	docs, err := s.meta.ListDocuments(ctx, models.StatusFailed, 10000, 0)
	if err != nil {
		return 0, err
	}
	var removed int
	for _, doc := range docs {
		if doc.UpdatedAt.After(threshold) {
			continue
		}
		if err := s.Delete(ctx, doc.ID); err != nil {
			s.log.Warn("failed to clean up expired document",
				logger.String("id", doc.ID),
				logger.Error(err),
			)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("cleaned up failed documents", logger.Int("count", removed))
	}
	return removed, nil
}

// Stats 汇总知识库状态
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	st, err := s.meta.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := s.vectors.Count(ctx); err != nil {
		s.log.Warn("failed to count vectors", logger.Error(err))
	} else {
		st.VectorCount = int64(n)
	}
	if qs, err := s.queue.Stats(ctx); err != nil {
		s.log.Warn("failed to read queue stats", logger.Error(err))
	} else {
		st.QueuePending = qs.Pending
		st.QueueActive = qs.Active
	}
	return st, nil
}

// MarkFailed 把文档标记为 failed 终态
func (s *Service) MarkFailed(ctx context.Context, id, message string) {
	status := models.StatusFailed
	upd := &models.DocumentUpdate{Status: &status, ErrorMessage: &message}
	if err := s.meta.UpdateDocument(ctx, id, upd); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Error("failed to mark document failed", logger.String("id", id), logger.Error(err))
	}
}

func (s *Service) cleanupBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.log.Error("failed to clean up stored file", logger.String("key", key), logger.Error(err))
	}
}
