package extractor

import (
	"context"
	"strings"
)

// PlainTextExtractor 纯文本兜底提取器
type PlainTextExtractor struct{}

// NewPlainTextExtractor 创建纯文本提取器
func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

func (e *PlainTextExtractor) CanHandle(contentType string) bool {
	// text/* 兜底，markdown/csv/json 都按纯文本处理
	return strings.HasPrefix(contentType, "text/") ||
		contentType == "application/json" ||
		contentType == "application/x-ndjson"
}

func (e *PlainTextExtractor) Extract(ctx context.Context, contentType string, data []byte) (*Result, error) {
	return &Result{Text: string(data)}, nil
}
