package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/feichai0017/aipower/pkg/logger"
)

// TesseractEngine 本地 Tesseract OCR 引擎，只支持图片
type TesseractEngine struct {
	languages string
	pipeline  []Preprocessor
	log       logger.Logger
}

// NewTesseractEngine 创建 Tesseract 引擎
func NewTesseractEngine(log logger.Logger) *TesseractEngine {
	return &TesseractEngine{
		languages: "eng",
		pipeline:  DefaultPipeline(),
		log:       log.Named("tesseract"),
	}
}

// Image 识别单张图片
func (e *TesseractEngine) Image(ctx context.Context, data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	processed, err := applyPipeline(img, e.pipeline)
	if err != nil {
		return "", err
	}

	// 每次识别创建独立 client，gosseract client 不是并发安全的
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, processed, &jpeg.Options{Quality: 100}); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return text, nil
}

// PDF Tesseract 不直接识别 PDF
func (e *TesseractEngine) PDF(ctx context.Context, data []byte) (string, error) {
	return "", ErrUnsupported
}
