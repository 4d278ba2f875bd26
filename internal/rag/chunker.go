package rag

import (
	"strings"
)

// defaultSeparators 切分优先级：段落、行、词，最后退化为逐字符硬切
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker 递归字符分块器。窗口上限chunkSize字符，相邻窗口重叠chunkOverlap字符，
// 优先在自然分隔符处断开。相同输入总是产生相同的分块边界。
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewChunker 创建分块器
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: overlap,
		separators:   defaultSeparators,
	}
}

// SplitDocuments 切分文本单元，每个产出块继承原单元的元数据
func (c *Chunker) SplitDocuments(docs []Document) []Document {
	var out []Document
	for _, doc := range docs {
		for _, text := range c.Split(doc.PageContent) {
			out = append(out, Document{
				PageContent: text,
				Metadata:    doc.Metadata,
			})
		}
	}
	return out
}

// Split 将文本切分为多个块
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.splitText(text, c.separators)
}

func (c *Chunker) splitText(text string, separators []string) []string {
	// 选择第一个在文本中出现的分隔符
	separator := separators[len(separators)-1]
	var nextSeparators []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			nextSeparators = separators[i+1:]
			break
		}
	}

	splits := splitWithSeparator(text, separator)

	var chunks []string
	var pending []string
	for _, piece := range splits {
		if runeLen(piece) < c.chunkSize {
			pending = append(pending, piece)
			continue
		}

		// 当前片段本身超限：先落盘累积的片段，再递归细分
		if len(pending) > 0 {
			chunks = append(chunks, c.mergeSplits(pending, separator)...)
			pending = nil
		}
		if len(nextSeparators) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, c.splitText(piece, nextSeparators)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, c.mergeSplits(pending, separator)...)
	}

	return chunks
}

// mergeSplits 贪心合并小片段至窗口上限，并保留重叠尾部
func (c *Chunker) mergeSplits(splits []string, separator string) []string {
	sepLen := runeLen(separator)

	var chunks []string
	var current []string
	total := 0

	for _, piece := range splits {
		pieceLen := runeLen(piece)
		if total+pieceLen+joinLen(len(current), sepLen) > c.chunkSize && len(current) > 0 {
			if chunk := joinTrimmed(current, separator); chunk != "" {
				chunks = append(chunks, chunk)
			}
			// 从头部弹出片段直到满足重叠预算
			for total > c.chunkOverlap ||
				(total+pieceLen+joinLen(len(current), sepLen) > c.chunkSize && total > 0) {
				total -= runeLen(current[0]) + joinLen(len(current)-1, sepLen)
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += pieceLen + joinLen(len(current)-1, sepLen)
	}

	if chunk := joinTrimmed(current, separator); chunk != "" {
		chunks = append(chunks, chunk)
	}

	return chunks
}

// splitWithSeparator 按分隔符拆分；空分隔符表示逐字符拆分
func splitWithSeparator(text, separator string) []string {
	var splits []string
	if separator == "" {
		for _, r := range text {
			splits = append(splits, string(r))
		}
		return splits
	}

	for _, piece := range strings.Split(text, separator) {
		if piece != "" {
			splits = append(splits, piece)
		}
	}
	return splits
}

func joinTrimmed(pieces []string, separator string) string {
	return strings.TrimSpace(strings.Join(pieces, separator))
}

// joinLen 拼接n个已有片段再追加一个时新增的分隔符长度
func joinLen(existing, sepLen int) int {
	if existing > 0 {
		return sepLen
	}
	return 0
}

func runeLen(s string) int {
	return len([]rune(s))
}
