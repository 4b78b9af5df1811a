package retrieval

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentences(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "This is sentence number %03d. ", i)
	}
	return b.String()
}

func TestChunkText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []int // 每个分块的字符数
	}{
		{"空文本", "", 500, 50, nil},
		{"短于最小长度", "too short", 500, 50, nil},
		{"单块", strings.Repeat("a", 120), 500, 50, []int{120}},
		{"无断点按窗口切分", strings.Repeat("a", 1200), 500, 50, []int{500, 500, 300}},
		{"多字节字符", strings.Repeat("中", 600), 500, 50, []int{500, 150}},
		{"尾部碎片被丢弃", strings.Repeat("a", 480), 500, 50, []int{480}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkText(tt.text, tt.size, tt.overlap)
			var got []int
			for _, c := range chunks {
				got = append(got, utf8.RuneCountInString(c))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChunkText_SentenceBoundary(t *testing.T) {
	text := sentences(60)
	chunks := ChunkText(text, 500, 50)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.GreaterOrEqual(t, utf8.RuneCountInString(c), MinChunkLength)
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 500)
		assert.True(t, strings.Contains(text, c), "chunk %d must be a substring of the input", i)
		if i < len(chunks)-1 {
			assert.True(t, strings.HasSuffix(c, "."), "chunk %d should end at a sentence boundary", i)
		}
	}
}

func TestChunkText_BreakBeforeMidpointIgnored(t *testing.T) {
	// 唯一的句号位于窗口前半段，保持整窗切分。
	text := strings.Repeat("a", 100) + "." + strings.Repeat("b", 900)
	chunks := ChunkText(text, 500, 50)
	require.NotEmpty(t, chunks)
	assert.Equal(t, 500, utf8.RuneCountInString(chunks[0]))
}

func TestChunkText_NewlineBreak(t *testing.T) {
	text := strings.Repeat("x", 400) + "\n" + strings.Repeat("y", 400)
	chunks := ChunkText(text, 500, 50)
	require.NotEmpty(t, chunks)
	assert.Equal(t, strings.Repeat("x", 400), chunks[0])
}

func TestChunkText_Terminates(t *testing.T) {
	t.Run("重叠大于窗口", func(t *testing.T) {
		chunks := ChunkText(strings.Repeat("a", 200), 100, 500)
		assert.NotEmpty(t, chunks)
	})

	t.Run("断点回退超过重叠", func(t *testing.T) {
		text := strings.Repeat(strings.Repeat("z", 60)+".", 20)
		chunks := ChunkText(text, 100, 80)
		assert.NotEmpty(t, chunks)
		for _, c := range chunks {
			assert.GreaterOrEqual(t, utf8.RuneCountInString(c), MinChunkLength)
		}
	})
}

func TestChunkText_CoversText(t *testing.T) {
	text := sentences(40)
	chunks := ChunkText(text, 200, 20)
	require.NotEmpty(t, chunks)

	assert.True(t, strings.HasPrefix(text, chunks[0]))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(text), chunks[len(chunks)-1]))
}
