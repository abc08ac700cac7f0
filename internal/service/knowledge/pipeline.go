package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/feichai0017/aipower/config"
	"github.com/feichai0017/aipower/internal/crawler"
	"github.com/feichai0017/aipower/internal/extractor"
	"github.com/feichai0017/aipower/internal/models"
	"github.com/feichai0017/aipower/internal/store"
	"github.com/feichai0017/aipower/internal/vector"
	"github.com/feichai0017/aipower/pkg/logger"
)

// 阶段进度里程碑
const (
	progressStarted  = 0
	progressParsed   = 40
	progressEmbedded = 80
	progressStored   = 95
	progressDone     = 100
)

// ProcessFileJob 执行文件摄取：取文件、提取文本、切分、向量化、落库。
// 文档处理中途被删除时静默终止。重复执行是幂等的。
func (s *Service) ProcessFileJob(ctx context.Context, job *models.IngestionJob) error {
	doc, err := s.meta.GetDocument(ctx, job.DocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Info("document deleted before processing", logger.String("id", job.DocumentID))
			return nil
		}
		return fmt.Errorf("failed to load document: %w", err)
	}
	if doc.Status == models.StatusCompleted {
		// 上次执行已经完成，重复投递直接确认
		return nil
	}

	if ok, err := s.setStage(ctx, job.DocumentID, models.StatusProcessing, progressStarted); err != nil || !ok {
		return err
	}

	rc, err := s.blobs.Get(ctx, job.ObjectKey)
	if err != nil {
		return fmt.Errorf("failed to fetch stored file: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("failed to read stored file: %w", err)
	}

	cfg := config.GetIngestConfig()
	stageCtx, cancel := context.WithTimeout(ctx, cfg.StageTimeout)
	result, err := s.extract.Extract(stageCtx, job.ContentType, data)
	cancel()
	if err != nil {
		if errors.Is(err, extractor.ErrUnsupportedType) || errors.Is(err, extractor.ErrEmptyDocument) {
			return Permanent(err)
		}
		return fmt.Errorf("extraction failed: %w", err)
	}

	return s.index(ctx, job.DocumentID, result)
}

// ProcessCrawlJob 执行网页摄取：抓取页面、合并正文，其余与文件管线相同
func (s *Service) ProcessCrawlJob(ctx context.Context, job *models.IngestionJob) error {
	doc, err := s.meta.GetDocument(ctx, job.DocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Info("document deleted before crawling", logger.String("id", job.DocumentID))
			return nil
		}
		return fmt.Errorf("failed to load document: %w", err)
	}
	if doc.Status == models.StatusCompleted {
		return nil
	}

	if ok, err := s.setStage(ctx, job.DocumentID, models.StatusCrawling, progressStarted); err != nil || !ok {
		return err
	}

	cfg := config.GetIngestConfig()
	stageCtx, cancel := context.WithTimeout(ctx, cfg.StageTimeout)
	pages, err := s.crawler.Crawl(stageCtx, job.URL, job.FollowLinks)
	cancel()
	if err != nil {
		// 起始页 4xx 不会因为重试而好转
		var se *crawler.StatusError
		if errors.As(err, &se) && se.Permanent() {
			return Permanent(fmt.Errorf("crawl failed: %w", err))
		}
		return fmt.Errorf("crawl failed: %w", err)
	}

	var sb strings.Builder
	for _, p := range pages {
		if p.Title != "" {
			sb.WriteString(p.Title)
			sb.WriteString("\n")
		}
		sb.WriteString(p.Text)
		sb.WriteString("\n\n")
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return Permanent(extractor.ErrEmptyDocument)
	}

	// 首页标题作为展示名
	if pages[0].Title != "" {
		name := pages[0].Title
		if err := s.meta.UpdateDocument(ctx, job.DocumentID, &models.DocumentUpdate{Name: &name}); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("failed to update document name", logger.String("id", job.DocumentID), logger.Error(err))
		}
	}

	result := &extractor.Result{
		Text:     text,
		Pages:    len(pages),
		Words:    len(strings.Fields(text)),
		Language: extractor.DetectLanguage(text),
	}
	return s.index(ctx, job.DocumentID, result)
}

// index 文本入库的共享后半段：切分、向量化、写 chunk 与向量、标记完成
func (s *Service) index(ctx context.Context, documentID string, result *extractor.Result) error {
	cfg := config.GetIngestConfig()

	upd := &models.DocumentUpdate{
		Content:   &result.Text,
		PageCount: &result.Pages,
		WordCount: &result.Words,
		Language:  &result.Language,
	}
	progress := progressParsed
	upd.Progress = &progress
	if err := s.meta.UpdateDocument(ctx, documentID, upd); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to save extracted content: %w", err)
	}

	chunker := extractor.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	pieces := chunker.Split(result.Text)
	if len(pieces) == 0 {
		return Permanent(extractor.ErrEmptyDocument)
	}

	model := config.GetOllamaConfig().EmbeddingModel
	embeddings := make([][]float32, 0, len(pieces))
	for start := 0; start < len(pieces); start += cfg.EmbedBatchSize {
		end := start + cfg.EmbedBatchSize
		if end > len(pieces) {
			end = len(pieces)
		}
		batch, err := s.embed.EmbedBatch(ctx, model, pieces[start:end])
		if err != nil {
			return fmt.Errorf("embedding failed: %w", err)
		}
		embeddings = append(embeddings, batch...)
	}
	if ok, err := s.advance(ctx, documentID, progressEmbedded); err != nil || !ok {
		return err
	}

	chunks := make([]*models.Chunk, len(pieces))
	entries := make([]*vector.Entry, len(pieces))
	for i, piece := range pieces {
		embeddingID := uuid.NewString()
		chunks[i] = &models.Chunk{
			ID:          uuid.NewString(),
			DocumentID:  documentID,
			Index:       i,
			Content:     piece,
			EmbeddingID: embeddingID,
		}
		entries[i] = &vector.Entry{
			ID:         embeddingID,
			DocumentID: documentID,
			ChunkIndex: i,
			Text:       piece,
			Embedding:  embeddings[i],
		}
	}

	// 先删后写，重试时不会残留旧向量
	if err := s.vectors.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to clear old vectors: %w", err)
	}
	if err := s.vectors.Add(ctx, entries); err != nil {
		return fmt.Errorf("failed to write vectors: %w", err)
	}
	if err := s.meta.ReplaceChunks(ctx, documentID, chunks); err != nil {
		return fmt.Errorf("failed to write chunks: %w", err)
	}
	if ok, err := s.advance(ctx, documentID, progressStored); err != nil || !ok {
		return err
	}

	status := models.StatusCompleted
	done := progressDone
	count := len(chunks)
	empty := ""
	err := s.meta.UpdateDocument(ctx, documentID, &models.DocumentUpdate{
		Status:       &status,
		Progress:     &done,
		ChunksCount:  &count,
		ErrorMessage: &empty,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// 文档在最后一步前被删，清掉刚写入的向量
			if verr := s.vectors.DeleteByDocument(ctx, documentID); verr != nil {
				s.log.Error("failed to clear vectors of deleted document",
					logger.String("id", documentID), logger.Error(verr))
			}
			return nil
		}
		return fmt.Errorf("failed to mark document completed: %w", err)
	}

	s.log.Info("document processed",
		logger.String("id", documentID),
		logger.Int("chunks", count),
		logger.String("language", result.Language),
	)
	return nil
}

// setStage 更新状态与进度。第二个返回值为 false 表示文档已被删除，
// 调用方应终止，不再进入后续阶段。
func (s *Service) setStage(ctx context.Context, id string, status models.DocumentStatus, progress int) (bool, error) {
	upd := &models.DocumentUpdate{Status: &status, Progress: &progress}
	if err := s.meta.UpdateDocument(ctx, id, upd); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Info("document deleted before processing started", logger.String("id", id))
			return false, nil
		}
		return false, fmt.Errorf("failed to update stage: %w", err)
	}
	return true, nil
}

// advance 推进进度。第二个返回值为 false 表示文档已被删除，调用方应终止。
func (s *Service) advance(ctx context.Context, id string, progress int) (bool, error) {
	upd := &models.DocumentUpdate{Progress: &progress}
	if err := s.meta.UpdateDocument(ctx, id, upd); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Info("document deleted mid-processing", logger.String("id", id))
			return false, nil
		}
		return false, fmt.Errorf("failed to update progress: %w", err)
	}
	return true, nil
}
