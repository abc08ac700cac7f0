package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/feichai0017/aipower/internal/crawler"
	"github.com/feichai0017/aipower/internal/extractor"
	"github.com/feichai0017/aipower/internal/models"
	"github.com/feichai0017/aipower/internal/store"
	"github.com/feichai0017/aipower/internal/vector"
	"github.com/feichai0017/aipower/pkg/logger"
	"github.com/feichai0017/aipower/pkg/queue"
)

type fakeMeta struct {
	mu        sync.Mutex
	docs      map[string]*models.Document
	chunks    map[string][]*models.Chunk
	settings  map[string]string
	deleteErr error

	// 在下一次 UpdateDocument 前执行，模拟并发删除
	beforeUpdate func(m *fakeMeta)
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{
		docs:     map[string]*models.Document{},
		chunks:   map[string][]*models.Chunk{},
		settings: map[string]string{},
	}
}

func (m *fakeMeta) CreateDocument(ctx context.Context, d *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.docs[d.ID] = &cp
	return nil
}

func (m *fakeMeta) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *fakeMeta) ListDocuments(ctx context.Context, status models.DocumentStatus, limit, offset int) ([]*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Document
	for _, d := range m.docs {
		if status != "" && d.Status != status {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (m *fakeMeta) UpdateDocument(ctx context.Context, id string, upd *models.DocumentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeUpdate != nil {
		hook := m.beforeUpdate
		m.beforeUpdate = nil
		hook(m)
	}
	d, ok := m.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	if upd.Name != nil {
		d.Name = *upd.Name
	}
	if upd.Status != nil {
		d.Status = *upd.Status
	}
	if upd.Progress != nil {
		d.Progress = *upd.Progress
	}
	if upd.ErrorMessage != nil {
		d.ErrorMessage = *upd.ErrorMessage
	}
	if upd.Content != nil {
		d.Content = *upd.Content
	}
	if upd.ChunksCount != nil {
		d.ChunksCount = *upd.ChunksCount
	}
	if upd.PageCount != nil {
		d.PageCount = *upd.PageCount
	}
	if upd.WordCount != nil {
		d.WordCount = *upd.WordCount
	}
	if upd.Language != nil {
		d.Language = *upd.Language
	}
	if upd.Tags != nil {
		d.Tags = upd.Tags
	}
	if upd.Metadata != nil {
		d.Metadata = upd.Metadata
	}
	return nil
}

func (m *fakeMeta) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.docs[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.docs, id)
	delete(m.chunks, id)
	return nil
}

func (m *fakeMeta) ReplaceChunks(ctx context.Context, documentID string, chunks []*models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[documentID] = chunks
	return nil
}

func (m *fakeMeta) GetChunksByDocument(ctx context.Context, documentID string) ([]*models.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks[documentID], nil
}

func (m *fakeMeta) Stats(ctx context.Context) (*models.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &models.Stats{TotalDocuments: len(m.docs)}
	for _, d := range m.docs {
		switch d.Status {
		case models.StatusPending:
			st.Pending++
		case models.StatusProcessing:
			st.Processing++
		case models.StatusCrawling:
			st.Crawling++
		case models.StatusCompleted:
			st.Completed++
		case models.StatusFailed:
			st.Failed++
		}
		st.TotalBytes += d.FileSize
	}
	for _, cs := range m.chunks {
		st.TotalChunks += int64(len(cs))
	}
	return st, nil
}

type fakeVector struct {
	mu        sync.Mutex
	entries   map[string][]*vector.Entry
	deleteErr error
	addErr    error
}

func newFakeVector() *fakeVector {
	return &fakeVector{entries: map[string][]*vector.Entry{}}
}

func (v *fakeVector) Add(ctx context.Context, entries []*vector.Entry) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.addErr != nil {
		return v.addErr
	}
	for _, e := range entries {
		v.entries[e.DocumentID] = append(v.entries[e.DocumentID], e)
	}
	return nil
}

func (v *fakeVector) DeleteByDocument(ctx context.Context, documentID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.deleteErr != nil {
		return v.deleteErr
	}
	delete(v.entries, documentID)
	return nil
}

func (v *fakeVector) Count(ctx context.Context) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var n int
	for _, es := range v.entries {
		n += len(es)
	}
	return n, nil
}

type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	storeErr  error
	getErr    error
	deleteErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}}
}

func (b *fakeBlobs) Store(ctx context.Context, reader io.Reader, key string, size int64, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.storeErr != nil {
		return b.storeErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	b.objects[key] = data
	return nil
}

func (b *fakeBlobs) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return nil, b.getErr
	}
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBlobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.objects, key)
	return nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []*models.IngestionJob
	err  error
}

func (q *fakeQueue) Enqueue(ctx context.Context, job *models.IngestionJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Stats(ctx context.Context) (*queue.Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return &queue.Stats{Pending: len(q.jobs)}, nil
}

type fakeEmbedder struct {
	err error
}

func (e *fakeEmbedder) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 0.5}
	}
	return out, nil
}

type fakeExtractor struct {
	result *extractor.Result
	err    error
}

func (e *fakeExtractor) Extract(ctx context.Context, contentType string, data []byte) (*extractor.Result, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

type fakeCrawler struct {
	pages []crawler.Page
	err   error
}

func (c *fakeCrawler) Crawl(ctx context.Context, rawURL string, followLinks bool) ([]crawler.Page, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.pages, nil
}

type fixture struct {
	svc     *Service
	meta    *fakeMeta
	vectors *fakeVector
	blobs   *fakeBlobs
	queue   *fakeQueue
	embed   *fakeEmbedder
	extract *fakeExtractor
	crawler *fakeCrawler
}

func newFixture() *fixture {
	f := &fixture{
		meta:    newFakeMeta(),
		vectors: newFakeVector(),
		blobs:   newFakeBlobs(),
		queue:   &fakeQueue{},
		embed:   &fakeEmbedder{},
		extract: &fakeExtractor{result: &extractor.Result{Text: "extracted text", Pages: 1, Words: 2, Language: "en"}},
		crawler: &fakeCrawler{},
	}
	f.svc = NewService(f.meta, f.vectors, f.blobs, f.queue, f.embed, f.extract, f.crawler, logger.NewTestLogger())
	return f
}
