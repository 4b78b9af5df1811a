package retrieval

import (
	"strings"
	"unicode/utf8"
)

// 默认分块参数
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
	MinChunkLength      = 50
)

// ChunkText 按字符窗口切分文本，窗口之间重叠 overlap 个字符。
// 若窗口未到文本末尾，且窗口内最后一个句号或换行位于窗口后半段，则在该处截断。
// 去除首尾空白后不足 MinChunkLength 的分块被丢弃。
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}

	runes := []rune(text)
	n := len(runes)
	half := float64(chunkSize) * 0.5

	var chunks []string
	for start := 0; start < n; {
		end := start + chunkSize
		window := runes[start:min(end, n)]

		if end < n {
			if bp := lastBreak(window); float64(bp) > half {
				window = window[:bp+1]
				end = start + bp + 1
			}
		}

		if chunk := strings.TrimSpace(string(window)); utf8.RuneCountInString(chunk) >= MinChunkLength {
			chunks = append(chunks, chunk)
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// lastBreak 返回最后一个 '.' 或 '\n' 的下标，不存在时返回 -1。
func lastBreak(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '.' || window[i] == '\n' {
			return i
		}
	}
	return -1
}
