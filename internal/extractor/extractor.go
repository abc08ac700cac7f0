package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/feichai0017/aipower/internal/ocr"
	"github.com/feichai0017/aipower/pkg/logger"
)

var (
	// ErrUnsupportedType 没有提取器能处理该 content type
	ErrUnsupportedType = errors.New("unsupported content type")
	// ErrEmptyDocument 文档没有可提取的文本
	ErrEmptyDocument = errors.New("no extractable text in document")
)

// Result 文本提取结果
type Result struct {
	Text     string
	Pages    int
	Words    int
	Language string
}

// Extractor 单一格式的文本提取器
type Extractor interface {
	// CanHandle 是否支持该 content type
	CanHandle(contentType string) bool
	// Extract 提取纯文本
	Extract(ctx context.Context, contentType string, data []byte) (*Result, error)
}

// Registry 按优先级排列的提取器集合
type Registry struct {
	extractors []Extractor
	log        logger.Logger
}

// NewRegistry 创建标准提取器集合。顺序即优先级：
// 专用提取器排在前面，plaintext 兜底。
func NewRegistry(engine ocr.Engine, log logger.Logger) *Registry {
	return &Registry{
		extractors: []Extractor{
			NewPDFExtractor(engine, log),
			NewOfficeExtractor(log),
			NewHTMLExtractor(log),
			NewImageExtractor(engine, log),
			NewPlainTextExtractor(),
		},
		log: log.Named("extractor"),
	}
}

// Extract 选择第一个支持该类型的提取器并执行
func (r *Registry) Extract(ctx context.Context, contentType string, data []byte) (*Result, error) {
	// content type 可能带 charset 等参数
	mime := strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
	for _, e := range r.extractors {
		if !e.CanHandle(mime) {
			continue
		}
		res, err := e.Extract(ctx, mime, data)
		if err != nil {
			return nil, err
		}
		finalize(res)
		if strings.TrimSpace(res.Text) == "" {
			return nil, ErrEmptyDocument
		}
		return res, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
}

// finalize 补齐统计字段
func finalize(r *Result) {
	r.Text = strings.TrimSpace(r.Text)
	if r.Pages == 0 {
		r.Pages = 1
	}
	r.Words = countWords(r.Text)
	if r.Language == "" {
		r.Language = DetectLanguage(r.Text)
	}
}

func countWords(text string) int {
	return len(strings.Fields(text))
}
