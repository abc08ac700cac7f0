package extractor

import (
	"bytes"
	"context"
	"fmt"

	"code.sajari.com/docconv"

	"github.com/feichai0017/aipower/pkg/logger"
)

var officeTypes = map[string]bool{
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-powerpoint": true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/vnd.oasis.opendocument.text": true,
	"application/rtf":                         true,
}

// OfficeExtractor Word/PowerPoint 等办公文档提取器，基于 docconv
type OfficeExtractor struct {
	log logger.Logger
}

// NewOfficeExtractor 创建办公文档提取器
func NewOfficeExtractor(log logger.Logger) *OfficeExtractor {
	return &OfficeExtractor{log: log.Named("office")}
}

func (e *OfficeExtractor) CanHandle(contentType string) bool {
	return officeTypes[contentType]
}

func (e *OfficeExtractor) Extract(ctx context.Context, contentType string, data []byte) (*Result, error) {
	res, err := docconv.Convert(bytes.NewReader(data), contentType, false)
	if err != nil {
		return nil, fmt.Errorf("docconv extraction failed: %w", err)
	}
	return &Result{Text: res.Body}, nil
}
