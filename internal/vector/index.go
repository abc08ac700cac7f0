package vector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/feichai0017/aipower/config"
	"github.com/feichai0017/aipower/pkg/logger"
)

// Entry 一条待写入的向量，payload 冗余 chunk 文本方便检索时直接取回
type Entry struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Text       string
	Embedding  []float32
}

// SearchResult 检索命中结果，Score 为余弦相似度
type SearchResult struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Text       string
	Score      float64
}

// Index 基于 pgvector 的向量索引
type Index struct {
	pool *pgxpool.Pool
	dim  int
	log  logger.Logger
}

// New 创建向量索引并初始化表结构
func New(ctx context.Context, log logger.Logger) (*Index, error) {
	cfg := config.GetPostgresConfig()
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pg config: %w", err)
	}
	// 每个连接注册 vector 类型
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pg pool: %w", err)
	}

	idx := &Index{pool: pool, dim: cfg.EmbeddingDimension, log: log.Named("vector")}
	if err := idx.bootstrap(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Index) bootstrap(ctx context.Context) error {
	if _, err := i.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS vector_entries (
			id          TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			chunk_index INT NOT NULL,
			content     TEXT NOT NULL,
			embedding   vector(%d) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_vector_entries_doc ON vector_entries (document_id);
	`, i.dim)
	if _, err := i.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to bootstrap vector table: %w", err)
	}
	return nil
}

// Close 关闭连接池
func (i *Index) Close() {
	i.pool.Close()
}

// Healthy 检查数据库连通性
func (i *Index) Healthy(ctx context.Context) error {
	return i.pool.Ping(ctx)
}

// Add 批量写入向量
func (i *Index) Add(ctx context.Context, entries []*Entry) error {
	tx, err := i.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if len(e.Embedding) != i.dim {
			return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(e.Embedding), i.dim)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO vector_entries (id, document_id, chunk_index, content, embedding)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
			e.ID, e.DocumentID, e.ChunkIndex, e.Text, pgxvector.NewVector(e.Embedding))
		if err != nil {
			return fmt.Errorf("failed to insert vector %s: %w", e.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// Search 余弦相似度检索，返回至多 topK 条分数不低于 minScore 的结果。
// 分数并列时按 (document_id, chunk_index) 排序保证顺序确定。
func (i *Index) Search(ctx context.Context, embedding []float32, topK int, minScore float64) ([]*SearchResult, error) {
	if len(embedding) != i.dim {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), i.dim)
	}
	rows, err := i.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content,
			1 - (embedding <=> $1) AS score
		FROM vector_entries
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1, document_id, chunk_index
		LIMIT $3`,
		pgxvector.NewVector(embedding), minScore, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.ChunkIndex, &r.Text, &r.Score); err != nil {
			return nil, err
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// DeleteByDocument 删除文档的全部向量
func (i *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := i.pool.Exec(ctx, `DELETE FROM vector_entries WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete vectors for %s: %w", documentID, err)
	}
	return nil
}

// Count 向量总数
func (i *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := i.pool.QueryRow(ctx, `SELECT count(*) FROM vector_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}
