package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/aipower/internal/ocr"
	"github.com/feichai0017/aipower/pkg/logger"
)

func newTestRegistry() *Registry {
	return NewRegistry(stubEngine{}, logger.NewTestLogger())
}

// stubEngine OCR 桩，注册表测试不跑真识别
type stubEngine struct{}

func (stubEngine) Image(ctx context.Context, data []byte) (string, error) {
	return "ocr text", nil
}

func (stubEngine) PDF(ctx context.Context, data []byte) (string, error) {
	return "", ocr.ErrUnsupported
}

func TestRegistryPlainText(t *testing.T) {
	r := newTestRegistry()
	res, err := r.Extract(context.Background(), "text/plain", []byte("hello knowledge base"))
	require.NoError(t, err)
	assert.Equal(t, "hello knowledge base", res.Text)
	assert.Equal(t, 3, res.Words)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, "en", res.Language)
}

func TestRegistryStripsContentTypeParams(t *testing.T) {
	r := newTestRegistry()
	res, err := r.Extract(context.Background(), "text/plain; charset=utf-8", []byte("with params"))
	require.NoError(t, err)
	assert.Equal(t, "with params", res.Text)
}

func TestRegistryMarkdownAsPlainText(t *testing.T) {
	r := newTestRegistry()
	res, err := r.Extract(context.Background(), "text/markdown", []byte("# Title\n\nbody"))
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Title")
}

func TestRegistryUnsupportedType(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Extract(context.Background(), "application/x-msdownload", []byte{0x4d, 0x5a})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestRegistryEmptyDocument(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Extract(context.Background(), "text/plain", []byte("   \n  "))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestRegistryImageUsesOCR(t *testing.T) {
	r := newTestRegistry()
	res, err := r.Extract(context.Background(), "image/png", []byte("fake png"))
	require.NoError(t, err)
	assert.Equal(t, "ocr text", res.Text)
}
