package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feichai0017/aipower/config"
	"github.com/feichai0017/aipower/internal/models"
	"github.com/feichai0017/aipower/pkg/logger"
)

// ErrNotFound 目标记录不存在
var ErrNotFound = errors.New("record not found")

// Store 文档元数据与 chunk 文本的 Postgres 存储
type Store struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	source_kind   TEXT NOT NULL,
	content_type  TEXT NOT NULL DEFAULT '',
	file_size     BIGINT NOT NULL DEFAULT 0,
	object_key    TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	progress      INT NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL DEFAULT '',
	chunks_count  INT NOT NULL DEFAULT 0,
	page_count    INT NOT NULL DEFAULT 0,
	word_count    INT NOT NULL DEFAULT 0,
	language      TEXT NOT NULL DEFAULT '',
	tags          TEXT[] NOT NULL DEFAULT '{}',
	metadata      JSONB NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (status);
CREATE INDEX IF NOT EXISTS idx_documents_created ON documents (created_at DESC);

CREATE TABLE IF NOT EXISTS chunks (
	id           TEXT PRIMARY KEY,
	document_id  TEXT NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
	chunk_index  INT NOT NULL,
	content      TEXT NOT NULL,
	embedding_id TEXT NOT NULL DEFAULT '',
	metadata     JSONB NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (document_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// New 创建存储并初始化表结构
func New(ctx context.Context, log logger.Logger) (*Store, error) {
	cfg := config.GetPostgresConfig()
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pg pool: %w", err)
	}
	s := &Store{pool: pool, log: log.Named("store")}
	if err := s.bootstrap(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool 用现有连接池创建存储，测试用
func NewWithPool(pool *pgxpool.Pool, log logger.Logger) *Store {
	return &Store{pool: pool, log: log.Named("store")}
}

func (s *Store) bootstrap(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to bootstrap schema: %w", err)
	}
	return nil
}

// Close 关闭连接池
func (s *Store) Close() {
	s.pool.Close()
}

// Healthy 检查数据库连通性
func (s *Store) Healthy(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const docColumns = `id, name, source_kind, content_type, file_size, object_key,
	status, progress, error_message, content, chunks_count, page_count,
	word_count, language, tags, metadata, created_at, updated_at`

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.Name, &d.SourceKind, &d.ContentType, &d.FileSize,
		&d.ObjectKey, &d.Status, &d.Progress, &d.ErrorMessage, &d.Content,
		&d.ChunksCount, &d.PageCount, &d.WordCount, &d.Language, &d.Tags,
		&d.Metadata, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// CreateDocument 插入新文档记录
func (s *Store) CreateDocument(ctx context.Context, d *models.Document) error {
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if d.Metadata == nil {
		d.Metadata = map[string]interface{}{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, name, source_kind, content_type, file_size,
			object_key, status, progress, tags, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		d.ID, d.Name, d.SourceKind, d.ContentType, d.FileSize, d.ObjectKey,
		d.Status, d.Progress, d.Tags, d.Metadata, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetDocument 按 ID 查询文档
func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+docColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

// ListDocuments 按创建时间倒序列出文档，status 为空则不过滤
func (s *Store) ListDocuments(ctx context.Context, status models.DocumentStatus, limit, offset int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + docColumns + ` FROM documents`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpdateDocument 按字段部分更新文档，返回 ErrNotFound 表示文档已被删除
func (s *Store) UpdateDocument(ctx context.Context, id string, upd *models.DocumentUpdate) error {
	sets := []string{"updated_at = now()"}
	args := []any{}
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.Progress != nil {
		add("progress", *upd.Progress)
	}
	if upd.ErrorMessage != nil {
		add("error_message", *upd.ErrorMessage)
	}
	if upd.Content != nil {
		add("content", *upd.Content)
	}
	if upd.ChunksCount != nil {
		add("chunks_count", *upd.ChunksCount)
	}
	if upd.PageCount != nil {
		add("page_count", *upd.PageCount)
	}
	if upd.WordCount != nil {
		add("word_count", *upd.WordCount)
	}
	if upd.Language != nil {
		add("language", *upd.Language)
	}
	if upd.Tags != nil {
		add("tags", upd.Tags)
	}
	if upd.Metadata != nil {
		add("metadata", upd.Metadata)
	}
	if len(args) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE documents SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDocument 删除文档，chunks 随外键级联删除
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceChunks 替换文档的全部 chunk，先删后写保证重试幂等
func (s *Store) ReplaceChunks(ctx context.Context, documentID string, chunks []*models.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	for _, c := range chunks {
		meta := c.Metadata
		if meta == nil {
			meta = map[string]interface{}{}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO chunks (id, document_id, chunk_index, content, embedding_id, metadata, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			c.ID, documentID, c.Index, c.Content, c.EmbeddingID, meta, time.Now())
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.Index, err)
		}
	}
	return tx.Commit(ctx)
}

// GetChunksByDocument 按顺序取出文档的全部 chunk
func (s *Store) GetChunksByDocument(ctx context.Context, documentID string) ([]*models.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content, embedding_id, metadata, created_at
		FROM chunks WHERE document_id = $1 ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content,
			&c.EmbeddingID, &c.Metadata, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// GetSetting 读取配置项，不存在返回 ErrNotFound
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// ListSettings 读取全部配置项
func (s *Store) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	settings := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// SetSetting 写入配置项
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// Stats 汇总各状态文档数量与字节数
func (s *Store) Stats(ctx context.Context) (*models.Stats, error) {
	var st models.Stats
	err := s.pool.QueryRow(ctx, `
		SELECT count(*),
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'processing'),
			count(*) FILTER (WHERE status = 'crawling'),
			count(*) FILTER (WHERE status = 'completed'),
			count(*) FILTER (WHERE status = 'failed'),
			COALESCE(sum(file_size), 0)
		FROM documents`).Scan(
		&st.TotalDocuments, &st.Pending, &st.Processing, &st.Crawling,
		&st.Completed, &st.Failed, &st.TotalBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to query document stats: %w", err)
	}
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&st.TotalChunks); err != nil {
		return nil, fmt.Errorf("failed to query chunk stats: %w", err)
	}
	return &st, nil
}
