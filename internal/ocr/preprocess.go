package ocr

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Preprocessor 图像预处理接口
type Preprocessor interface {
	Process(img image.Image) (image.Image, error)
}

// 灰度处理器
type GrayscaleProcessor struct{}

func (p *GrayscaleProcessor) Process(img image.Image) (image.Image, error) {
	return imaging.Grayscale(img), nil
}

// 降噪处理器
type DenoiseProcessor struct {
	strength float64
}

func (p *DenoiseProcessor) Process(img image.Image) (image.Image, error) {
	return imaging.Blur(img, p.strength), nil
}

// 对比度处理器
type ContrastProcessor struct {
	amount float64
}

func (p *ContrastProcessor) Process(img image.Image) (image.Image, error) {
	return imaging.AdjustContrast(img, p.amount), nil
}

// 锐化处理器
type SharpenProcessor struct {
	strength float64
}

func (p *SharpenProcessor) Process(img image.Image) (image.Image, error) {
	return imaging.Sharpen(img, p.strength), nil
}

// DefaultPipeline 扫描件识别前的标准预处理管道
func DefaultPipeline() []Preprocessor {
	return []Preprocessor{
		&GrayscaleProcessor{},
		&DenoiseProcessor{strength: 0.5},
		&ContrastProcessor{amount: 20},
		&SharpenProcessor{strength: 0.5},
	}
}

func applyPipeline(img image.Image, pipeline []Preprocessor) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}
	result := img
	for _, p := range pipeline {
		var err error
		result, err = p.Process(result)
		if err != nil {
			return nil, fmt.Errorf("preprocessing failed: %w", err)
		}
		if result == nil {
			return nil, fmt.Errorf("preprocessor returned nil image")
		}
	}
	return result, nil
}
