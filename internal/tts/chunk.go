package tts

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultMaxChunkLength 单个 chunk 的默认最大长度（按 rune 计）
const DefaultMaxChunkLength = 150

// 句读终止符：中英文句末/分句符号加换行。
// 切分时终止符保留在前一段末尾。
const defaultTerminators = "。！？；：，、.!?;:,\n"

// 空行视为段落边界
var paragraphPattern = regexp.MustCompile(`\n\s*\n`)

// Chunk 是一段有界长度、按句读对齐的文本，
// 带稳定标识（缓存键）和全局单调递增的序号。
// 创建后不可变。
type Chunk struct {
	ID    string
	Index int
	Text  string
}

// Chunker 将任意文本切成有界长度的 chunk 序列
type Chunker struct {
	maxLen      int
	terminators map[rune]bool
}

func NewChunker(maxLen int) *Chunker {
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLength
	}
	term := make(map[rune]bool, len(defaultTerminators))
	for _, r := range defaultTerminators {
		term[r] = true
	}
	return &Chunker{maxLen: maxLen, terminators: term}
}

// Split 从序号 0 开始切分；空白输入返回空序列
func (c *Chunker) Split(text string) []Chunk {
	return c.SplitFrom(text, 0)
}

// SplitFrom 切分文本，序号从 start 开始连续分配。
// 先按空行切段落，段落内按终止符切小段，
// 再贪心合并小段：加入下一段会超过 maxLen 时另起新 chunk。
func (c *Chunker) SplitFrom(text string, start int) []Chunk {
	var chunks []Chunk
	next := start

	for _, para := range paragraphPattern.Split(text, -1) {
		if strings.TrimSpace(para) == "" {
			continue
		}

		var buf strings.Builder
		flush := func() {
			t := strings.TrimSpace(buf.String())
			buf.Reset()
			if t == "" {
				return
			}
			chunks = append(chunks, Chunk{
				ID:    uuid.NewString(),
				Index: next,
				Text:  t,
			})
			next++
		}

		for _, seg := range c.segments(para) {
			// 单段超长时仍然独占一个 chunk（无法继续切分）
			if buf.Len() > 0 && utf8.RuneCountInString(strings.TrimSpace(buf.String()+seg)) > c.maxLen {
				flush()
			}
			buf.WriteString(seg)
		}
		flush()
	}

	return chunks
}

// segments 按终止符切分段落，终止符跟随前一段；丢弃空白段
func (c *Chunker) segments(para string) []string {
	var segs []string
	var cur strings.Builder

	for _, r := range para {
		cur.WriteRune(r)
		if c.terminators[r] {
			if s := cur.String(); strings.TrimSpace(s) != "" {
				segs = append(segs, s)
			}
			cur.Reset()
		}
	}
	if s := cur.String(); strings.TrimSpace(s) != "" {
		segs = append(segs, s)
	}
	return segs
}
