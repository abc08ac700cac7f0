package models

import (
	"time"
)

// JobOperation 任务操作类型
type JobOperation string

const (
	OpParseFile JobOperation = "parse_file"
	OpCrawlURL  JobOperation = "crawl_url"
)

// IngestionJob 队列中的文档处理任务。一个任务独占一个 document id，
// re-delivery 时 worker 必须幂等（旧块先删后写）。
type IngestionJob struct {
	DocumentID  string       `json:"documentId"`
	Operation   JobOperation `json:"operation"`
	ObjectKey   string       `json:"objectKey,omitempty"`
	FileName    string       `json:"fileName,omitempty"`
	ContentType string       `json:"contentType,omitempty"`
	URL         string       `json:"url,omitempty"`
	FollowLinks bool         `json:"followLinks,omitempty"`
	EnqueuedAt  time.Time    `json:"enqueuedAt"`
}
