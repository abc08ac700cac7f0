package ocr

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/feichai0017/aipower/config"
	"github.com/feichai0017/aipower/pkg/logger"
)

// TextractEngine AWS Textract OCR 引擎，支持图片和 PDF
type TextractEngine struct {
	client        *textract.Client
	minConfidence float32
	log           logger.Logger
}

// NewTextractEngine 创建 Textract 引擎
func NewTextractEngine(ctx context.Context, log logger.Logger) (*TextractEngine, error) {
	cfg := config.GetTextractConfig()
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return &TextractEngine{
		client:        textract.NewFromConfig(awsCfg),
		minConfidence: cfg.MinConfidence,
		log:           log.Named("textract"),
	}, nil
}

// Image 识别单张图片
func (e *TextractEngine) Image(ctx context.Context, data []byte) (string, error) {
	return e.detect(ctx, data)
}

// PDF 识别扫描版 PDF
func (e *TextractEngine) PDF(ctx context.Context, data []byte) (string, error) {
	return e.detect(ctx, data)
}

func (e *TextractEngine) detect(ctx context.Context, data []byte) (string, error) {
	result, err := e.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: data},
	})
	if err != nil {
		return "", fmt.Errorf("textract request failed: %w", err)
	}

	var lines []string
	for _, block := range result.Blocks {
		if block.BlockType == types.BlockTypeLine &&
			block.Confidence != nil &&
			*block.Confidence >= e.minConfidence &&
			block.Text != nil {
			lines = append(lines, *block.Text)
		}
	}
	return strings.Join(lines, "\n"), nil
}
