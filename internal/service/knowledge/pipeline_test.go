package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/aipower/internal/crawler"
	"github.com/feichai0017/aipower/internal/extractor"
	"github.com/feichai0017/aipower/internal/models"
)

func seedFileDoc(f *fixture, id string) *models.IngestionJob {
	f.meta.docs[id] = &models.Document{
		ID:         id,
		Name:       "doc.txt",
		SourceKind: models.SourceFile,
		ObjectKey:  id + ".txt",
		Status:     models.StatusPending,
	}
	f.blobs.objects[id+".txt"] = []byte("raw bytes")
	return &models.IngestionJob{
		DocumentID:  id,
		Operation:   models.OpParseFile,
		ObjectKey:   id + ".txt",
		ContentType: "text/plain",
	}
}

func TestProcessFileJobCompletes(t *testing.T) {
	f := newFixture()
	job := seedFileDoc(f, "d1")

	require.NoError(t, f.svc.ProcessFileJob(context.Background(), job))

	doc := f.meta.docs["d1"]
	assert.Equal(t, models.StatusCompleted, doc.Status)
	assert.Equal(t, 100, doc.Progress)
	assert.Equal(t, "extracted text", doc.Content)
	assert.Equal(t, "en", doc.Language)
	assert.Equal(t, 1, doc.ChunksCount)
	assert.Empty(t, doc.ErrorMessage)

	// chunk 与向量一一对应
	chunks := f.meta.chunks["d1"]
	require.Len(t, chunks, 1)
	entries := f.vectors.entries["d1"]
	require.Len(t, entries, 1)
	assert.Equal(t, chunks[0].EmbeddingID, entries[0].ID)
	assert.Equal(t, chunks[0].Content, entries[0].Text)
}

func TestProcessFileJobSplitsLongText(t *testing.T) {
	f := newFixture()
	f.extract.result = &extractor.Result{
		Text:     strings.Repeat("a", 3000),
		Pages:    3,
		Words:    1,
		Language: "en",
	}
	job := seedFileDoc(f, "d1")

	require.NoError(t, f.svc.ProcessFileJob(context.Background(), job))

	assert.Equal(t, 4, f.meta.docs["d1"].ChunksCount)
	assert.Len(t, f.vectors.entries["d1"], 4)
	// chunk 顺序与索引一致
	for i, c := range f.meta.chunks["d1"] {
		assert.Equal(t, i, c.Index)
	}
}

func TestProcessFileJobDeletedDocumentIsNoop(t *testing.T) {
	f := newFixture()
	job := &models.IngestionJob{DocumentID: "gone", Operation: models.OpParseFile, ObjectKey: "gone.txt"}

	// 文档已删除：静默成功，队列不再重试
	require.NoError(t, f.svc.ProcessFileJob(context.Background(), job))
	assert.Empty(t, f.vectors.entries)
}

func TestProcessFileJobDeletedAtStageStartAborts(t *testing.T) {
	f := newFixture()
	job := seedFileDoc(f, "d1")
	// 加载之后、状态更新之前文档被并发删除
	f.meta.beforeUpdate = func(m *fakeMeta) { delete(m.docs, "d1") }
	// blob 已不存在，若管线没有及时终止会在取文件时报错
	delete(f.blobs.objects, job.ObjectKey)

	require.NoError(t, f.svc.ProcessFileJob(context.Background(), job))
	assert.Empty(t, f.vectors.entries)
}

func TestProcessFileJobCompletedIsIdempotent(t *testing.T) {
	f := newFixture()
	job := seedFileDoc(f, "d1")
	f.meta.docs["d1"].Status = models.StatusCompleted

	require.NoError(t, f.svc.ProcessFileJob(context.Background(), job))
	// 已完成的文档不会被重新处理
	assert.Empty(t, f.vectors.entries)
}

func TestProcessFileJobRetryReplacesChunks(t *testing.T) {
	f := newFixture()
	job := seedFileDoc(f, "d1")

	require.NoError(t, f.svc.ProcessFileJob(context.Background(), job))
	// 重新触发处理：旧向量被替换而不是累加
	f.meta.docs["d1"].Status = models.StatusProcessing
	require.NoError(t, f.svc.ProcessFileJob(context.Background(), job))

	assert.Len(t, f.vectors.entries["d1"], 1)
	assert.Len(t, f.meta.chunks["d1"], 1)
}

func TestProcessFileJobUnsupportedTypeIsPermanent(t *testing.T) {
	f := newFixture()
	f.extract.err = extractor.ErrUnsupportedType
	job := seedFileDoc(f, "d1")

	err := f.svc.ProcessFileJob(context.Background(), job)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestProcessFileJobEmptyDocumentIsPermanent(t *testing.T) {
	f := newFixture()
	f.extract.err = extractor.ErrEmptyDocument
	job := seedFileDoc(f, "d1")

	err := f.svc.ProcessFileJob(context.Background(), job)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestProcessFileJobTransientEmbedFailure(t *testing.T) {
	f := newFixture()
	f.embed.err = errors.New("ollama timeout")
	job := seedFileDoc(f, "d1")

	err := f.svc.ProcessFileJob(context.Background(), job)
	require.Error(t, err)
	// 瞬时错误不标记 permanent，留给队列重试
	assert.False(t, IsPermanent(err))
	assert.NotEqual(t, models.StatusFailed, f.meta.docs["d1"].Status)
}

func TestProcessCrawlJobCompletes(t *testing.T) {
	f := newFixture()
	f.meta.docs["w1"] = &models.Document{
		ID:         "w1",
		Name:       "https://example.com",
		SourceKind: models.SourceWeb,
		Status:     models.StatusCrawling,
	}
	f.crawler.pages = []crawler.Page{
		{URL: "https://example.com", Title: "Example Docs", Text: "welcome to the docs"},
		{URL: "https://example.com/page2", Title: "Page 2", Text: "more content"},
	}
	job := &models.IngestionJob{DocumentID: "w1", Operation: models.OpCrawlURL, URL: "https://example.com", FollowLinks: true}

	require.NoError(t, f.svc.ProcessCrawlJob(context.Background(), job))

	doc := f.meta.docs["w1"]
	assert.Equal(t, models.StatusCompleted, doc.Status)
	assert.Equal(t, 100, doc.Progress)
	// 首页标题成为展示名
	assert.Equal(t, "Example Docs", doc.Name)
	assert.Equal(t, 2, doc.PageCount)
	assert.Contains(t, doc.Content, "welcome to the docs")
	assert.Contains(t, doc.Content, "more content")
}

func TestProcessCrawlJobEmptyPagesIsPermanent(t *testing.T) {
	f := newFixture()
	f.meta.docs["w1"] = &models.Document{ID: "w1", SourceKind: models.SourceWeb, Status: models.StatusCrawling}
	f.crawler.pages = []crawler.Page{{URL: "https://example.com", Text: "   "}}
	job := &models.IngestionJob{DocumentID: "w1", Operation: models.OpCrawlURL, URL: "https://example.com"}

	err := f.svc.ProcessCrawlJob(context.Background(), job)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestProcessCrawlJobNotFoundPageIsPermanent(t *testing.T) {
	f := newFixture()
	f.meta.docs["w1"] = &models.Document{ID: "w1", SourceKind: models.SourceWeb, Status: models.StatusCrawling}
	f.crawler.err = &crawler.StatusError{URL: "https://example.com/gone", Code: 404}
	job := &models.IngestionJob{DocumentID: "w1", Operation: models.OpCrawlURL, URL: "https://example.com/gone"}

	// 起始页 404 没有重试价值，第一次就永久失败
	err := f.svc.ProcessCrawlJob(context.Background(), job)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Empty(t, f.meta.chunks["w1"])
}

func TestProcessCrawlJobFetchFailureIsTransient(t *testing.T) {
	f := newFixture()
	f.meta.docs["w1"] = &models.Document{ID: "w1", SourceKind: models.SourceWeb, Status: models.StatusCrawling}
	f.crawler.err = errors.New("connection refused")
	job := &models.IngestionJob{DocumentID: "w1", Operation: models.OpCrawlURL, URL: "https://example.com"}

	err := f.svc.ProcessCrawlJob(context.Background(), job)
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

func TestMarkFailedSetsTerminalState(t *testing.T) {
	f := newFixture()
	f.meta.docs["d1"] = &models.Document{ID: "d1", Status: models.StatusProcessing}

	f.svc.MarkFailed(context.Background(), "d1", "boom")

	doc := f.meta.docs["d1"]
	assert.Equal(t, models.StatusFailed, doc.Status)
	assert.Equal(t, "boom", doc.ErrorMessage)
	assert.True(t, doc.Status.Terminal())
}
