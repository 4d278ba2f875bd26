package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerShortTextSingleChunk(t *testing.T) {
	chunker := NewChunker(2000, 200)

	chunks := chunker.Split("hello world")
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}

func TestChunkerEmptyText(t *testing.T) {
	chunker := NewChunker(2000, 200)

	assert.Empty(t, chunker.Split(""))
	assert.Empty(t, chunker.Split("   \n\n  "))
}

func TestChunkerRespectsSizeLimit(t *testing.T) {
	chunker := NewChunker(100, 20)

	// 构造多段落长文本
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("This is sentence number one in the paragraph. Here is another sentence.\n\n")
	}

	chunks := chunker.Split(b.String())
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 100, "chunk %d exceeds size limit", i)
		assert.NotEmpty(t, strings.TrimSpace(chunk), "chunk %d is blank", i)
	}
}

func TestChunkerDeterministic(t *testing.T) {
	chunker := NewChunker(120, 30)
	text := strings.Repeat("alpha beta gamma delta epsilon zeta eta theta. ", 40)

	first := chunker.Split(text)
	second := chunker.Split(text)
	assert.Equal(t, first, second)
}

func TestChunkerOverlapCarriesText(t *testing.T) {
	chunker := NewChunker(50, 20)
	text := strings.Repeat("one two three four five six seven eight nine ten ", 20)

	chunks := chunker.Split(text)
	require.Greater(t, len(chunks), 1)

	// 相邻块之间应共享结尾/开头的词
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		require.NotEmpty(t, prevWords)
		lastWord := prevWords[len(prevWords)-1]
		assert.Contains(t, chunks[i], lastWord,
			"chunk %d does not overlap with its predecessor", i)
	}
}

func TestChunkerNoSeparatorHardSplit(t *testing.T) {
	chunker := NewChunker(10, 0)

	// 无任何分隔符的连续字符串，必须按字符强制切分
	chunks := chunker.Split(strings.Repeat("x", 35))
	require.Len(t, chunks, 4)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 10)
	}
	assert.Equal(t, strings.Repeat("x", 35), strings.Join(chunks, ""))
}

func TestChunkerUnicodeLengthByRune(t *testing.T) {
	chunker := NewChunker(10, 0)

	// 中文按字符数计而非字节数
	chunks := chunker.Split(strings.Repeat("知", 25))
	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 10)
	}
}

func TestChunkerInvalidParamsFallBackToDefaults(t *testing.T) {
	chunker := NewChunker(0, -5)
	assert.Equal(t, 2000, chunker.chunkSize)
	assert.Equal(t, 0, chunker.chunkOverlap)

	// 重叠不能大于等于块大小
	chunker = NewChunker(100, 100)
	assert.Equal(t, 25, chunker.chunkOverlap)
}

func TestSplitDocumentsPreservesMetadata(t *testing.T) {
	chunker := NewChunker(50, 10)
	page := 3
	docs := []Document{
		{
			PageContent: strings.Repeat("some searchable sentence here ", 20),
			Metadata:    Metadata{Source: "report.pdf", Page: &page},
		},
	}

	chunks := chunker.SplitDocuments(docs)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.Equal(t, "report.pdf", chunk.Metadata.Source)
		require.NotNil(t, chunk.Metadata.Page)
		assert.Equal(t, 3, *chunk.Metadata.Page)
	}
}
