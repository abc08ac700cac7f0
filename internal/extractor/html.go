package extractor

import (
	"bytes"
	"context"
	"fmt"

	"code.sajari.com/docconv"

	"github.com/feichai0017/aipower/pkg/logger"
)

// HTMLExtractor HTML 文档提取器，readability 模式剥离导航等噪音
type HTMLExtractor struct {
	log logger.Logger
}

// NewHTMLExtractor 创建 HTML 提取器
func NewHTMLExtractor(log logger.Logger) *HTMLExtractor {
	return &HTMLExtractor{log: log.Named("html")}
}

func (e *HTMLExtractor) CanHandle(contentType string) bool {
	return contentType == "text/html" || contentType == "application/xhtml+xml"
}

func (e *HTMLExtractor) Extract(ctx context.Context, contentType string, data []byte) (*Result, error) {
	res, err := docconv.Convert(bytes.NewReader(data), "text/html", true)
	if err != nil {
		return nil, fmt.Errorf("html extraction failed: %w", err)
	}
	return &Result{Text: res.Body}, nil
}
