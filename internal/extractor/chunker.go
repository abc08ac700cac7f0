package extractor

import (
	"strings"
	"unicode"
)

// Chunker 把提取文本切成带重叠的定长片段
type Chunker struct {
	size    int
	overlap int
}

// NewChunker 创建切分器。overlap 必须小于 size，否则回退到 size/5。
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split 按 rune 切分文本。窗口末尾的 size/5 范围内优先在空白处断开，
// 避免切在词中间。相邻片段重叠 overlap 个 rune。
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			chunk := strings.TrimSpace(string(runes[start:]))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		// 在窗口末段找空白断点
		cut := end
		window := c.size / 5
		for i := end; i > end-window && i > start; i-- {
			if unicode.IsSpace(runes[i-1]) {
				cut = i
				break
			}
		}

		chunk := strings.TrimSpace(string(runes[start:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - c.overlap
		// 保证前进，避免 overlap 吃掉整个窗口
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}
