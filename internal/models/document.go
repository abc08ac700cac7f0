package models

import (
	"time"
)

// SourceKind 文档来源类型
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceWeb  SourceKind = "web"
)

// DocumentStatus 文档处理状态
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCrawling   DocumentStatus = "crawling"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// Terminal reports whether the status permits no further transitions
// short of an explicit re-ingestion.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document 知识库文档记录
type Document struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	SourceKind   SourceKind             `json:"sourceKind"`
	ContentType  string                 `json:"contentType"`
	FileSize     int64                  `json:"fileSize"`
	ObjectKey    string                 `json:"objectKey,omitempty"`
	Status       DocumentStatus         `json:"status"`
	Progress     int                    `json:"progress"`
	ErrorMessage string                 `json:"errorMessage,omitempty"`
	Content      string                 `json:"content,omitempty"`
	ChunksCount  int                    `json:"chunksCount"`
	PageCount    int                    `json:"pageCount"`
	WordCount    int                    `json:"wordCount"`
	Language     string                 `json:"language"`
	Tags         []string               `json:"tags"`
	Metadata     map[string]interface{} `json:"metadata"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// Chunk 文档块，embedding 与检索的最小单位
type Chunk struct {
	ID          string                 `json:"id"`
	DocumentID  string                 `json:"documentId"`
	Index       int                    `json:"index"`
	Content     string                 `json:"content"`
	EmbeddingID string                 `json:"embeddingId,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// DocumentUpdate carries a partial mutation of a document row. Nil fields
// are left untouched so concurrent writers on different fields don't clobber
// each other.
type DocumentUpdate struct {
	Name         *string
	Status       *DocumentStatus
	Progress     *int
	ErrorMessage *string
	Content      *string
	ChunksCount  *int
	PageCount    *int
	WordCount    *int
	Language     *string
	Tags         []string
	Metadata     map[string]interface{}
}

// Stats 知识库聚合统计
type Stats struct {
	TotalDocuments int   `json:"totalDocuments"`
	Pending        int   `json:"pending"`
	Processing     int   `json:"processing"`
	Crawling       int   `json:"crawling"`
	Completed      int   `json:"completed"`
	Failed         int   `json:"failed"`
	TotalChunks    int64 `json:"totalChunks"`
	TotalBytes     int64 `json:"totalBytes"`
	VectorCount    int64 `json:"vectorCount"`
	QueuePending   int   `json:"queuePending"`
	QueueActive    int   `json:"queueActive"`
}
