package ocr

import (
	"context"
	"errors"

	"github.com/feichai0017/aipower/config"
	"github.com/feichai0017/aipower/pkg/logger"
)

// ErrUnsupported 引擎不支持该输入格式
var ErrUnsupported = errors.New("input format not supported by ocr engine")

// Engine OCR 引擎接口
type Engine interface {
	// Image 识别单张图片
	Image(ctx context.Context, data []byte) (string, error)
	// PDF 识别扫描版 PDF，不支持时返回 ErrUnsupported
	PDF(ctx context.Context, data []byte) (string, error)
}

// NewEngine 根据配置选择引擎，Textract 启用时优先
func NewEngine(ctx context.Context, log logger.Logger) (Engine, error) {
	if config.GetTextractConfig().Enabled {
		return NewTextractEngine(ctx, log)
	}
	return NewTesseractEngine(log), nil
}
