package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerSplitShortText(t *testing.T) {
	c := NewChunker(1000, 200)
	chunks := c.Split("hello world")
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}

func TestChunkerSplitEmpty(t *testing.T) {
	c := NewChunker(1000, 200)
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\t  "))
}

func TestChunkerSplitLongText(t *testing.T) {
	// 3000 个字符、无空白：窗口步进 size-overlap=800
	text := strings.Repeat("a", 3000)
	c := NewChunker(1000, 200)

	chunks := c.Split(text)
	require.Len(t, chunks, 4)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 1000)
	assert.Len(t, chunks[3], 600)
}

func TestChunkerOverlapCarriesContext(t *testing.T) {
	text := strings.Repeat("b", 2000)
	c := NewChunker(1000, 200)

	chunks := c.Split(text)
	require.GreaterOrEqual(t, len(chunks), 2)
	// 相邻块共享 overlap 长度的内容
	tail := chunks[0][len(chunks[0])-200:]
	assert.True(t, strings.HasPrefix(chunks[1], tail))
}

func TestChunkerPrefersWhitespaceBreak(t *testing.T) {
	// 在窗口末段放一个空格，切点应落在空格处而不是 1000
	text := strings.Repeat("x", 950) + " " + strings.Repeat("y", 2000)
	c := NewChunker(1000, 200)

	chunks := c.Split(text)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, strings.Repeat("x", 950), chunks[0])
}

func TestChunkerMultibyteSafe(t *testing.T) {
	// 多字节字符按 rune 计数，不会切出半个字符
	text := strings.Repeat("知识库测试文档", 300) // 2100 runes
	c := NewChunker(1000, 200)

	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.True(t, len([]rune(chunk)) <= 1000)
		for _, r := range chunk {
			assert.NotEqual(t, '�', r)
		}
	}
}

func TestChunkerForwardProgress(t *testing.T) {
	// 构造每块都在空白处早断的输入，overlap 也不能让窗口倒退
	text := strings.Repeat(strings.Repeat("w", 9)+" ", 1000)
	c := NewChunker(100, 90)

	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	// 有限输入必然在有限块数内终止
	assert.Less(t, len(chunks), 20000)
}

func TestChunkerInvalidOverlapFallsBack(t *testing.T) {
	c := NewChunker(1000, 5000)
	chunks := c.Split(strings.Repeat("z", 3000))
	require.NotEmpty(t, chunks)
	assert.Equal(t, 200, c.overlap)
}
