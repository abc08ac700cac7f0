package extractor

import (
	"context"

	"github.com/feichai0017/aipower/internal/ocr"
	"github.com/feichai0017/aipower/pkg/logger"
)

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/tiff": true,
}

// ImageExtractor 图片 OCR 提取器
type ImageExtractor struct {
	engine ocr.Engine
	log    logger.Logger
}

// NewImageExtractor 创建图片提取器
func NewImageExtractor(engine ocr.Engine, log logger.Logger) *ImageExtractor {
	return &ImageExtractor{engine: engine, log: log.Named("image")}
}

func (e *ImageExtractor) CanHandle(contentType string) bool {
	return imageTypes[contentType]
}

func (e *ImageExtractor) Extract(ctx context.Context, contentType string, data []byte) (*Result, error) {
	text, err := e.engine.Image(ctx, data)
	if err != nil {
		return nil, err
	}
	return &Result{Text: text}, nil
}
