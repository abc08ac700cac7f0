package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/feichai0017/aipower/internal/ocr"
	"github.com/feichai0017/aipower/pkg/logger"
)

// 平均每页少于这个字符数时认为是扫描版，转交 OCR
const minCharsPerPage = 20

// PDFExtractor PDF 文本提取器，文本层为空时回退到 OCR
type PDFExtractor struct {
	engine ocr.Engine
	log    logger.Logger
}

// NewPDFExtractor 创建 PDF 提取器
func NewPDFExtractor(engine ocr.Engine, log logger.Logger) *PDFExtractor {
	return &PDFExtractor{engine: engine, log: log.Named("pdf")}
}

func (e *PDFExtractor) CanHandle(contentType string) bool {
	return contentType == "application/pdf"
}

func (e *PDFExtractor) Extract(ctx context.Context, contentType string, data []byte) (*Result, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := pdfReader.NumPage()
	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.log.Warn("failed to extract pdf page",
				logger.Int("page", i),
				logger.Error(err),
			)
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	if numPages > 0 && len(text) < numPages*minCharsPerPage {
		// 文本层几乎为空，可能是扫描版
		ocrText, err := e.engine.PDF(ctx, data)
		if err != nil {
			if errors.Is(err, ocr.ErrUnsupported) {
				e.log.Warn("scanned pdf detected but ocr engine does not support pdf input")
			} else {
				return nil, fmt.Errorf("pdf ocr fallback failed: %w", err)
			}
		} else if len(strings.TrimSpace(ocrText)) > len(text) {
			text = strings.TrimSpace(ocrText)
		}
	}

	return &Result{Text: text, Pages: numPages}, nil
}
