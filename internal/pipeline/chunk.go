package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Chunk is a bounded window of a document's extracted text together with
// the byte offset at which it begins in that text.
type Chunk struct {
	Index       int
	Content     string
	StartOffset int
}

// Chunker splits extracted text into token-bounded, overlapping windows.
// It is safe for concurrent use: tiktoken.Tiktoken holds no per-call state.
type Chunker struct {
	enc           *tiktoken.Tiktoken
	maxTokens     int
	overlapTokens int
}

// NewChunker builds a Chunker over cl100k_base, the same encoding used by
// the embedding models this pipeline targets.
func NewChunker(maxTokens, overlapTokens int) (*Chunker, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load tokenizer encoding: %w", err)
	}
	return &Chunker{enc: enc, maxTokens: maxTokens, overlapTokens: overlapTokens}, nil
}

// Chunk splits text into windows of at most maxTokens tokens, each window
// overlapping the previous by overlapTokens tokens. Empty text yields no
// chunks.
//
// Token windows are decoded back to text with the tokenizer, which gives
// each chunk's exact content but not its byte offset in the original
// string (BPE token boundaries don't carry position information once
// decoded in isolation). The offset is recovered by searching forward from
// an anchor near the end of the previous chunk — previous.start +
// len(previous.content) - 100 — advanced to the next rune boundary. A miss
// falls back to that advanced anchor rather than scanning the whole text,
// since it can only happen on pathological repeated content.
func (c *Chunker) Chunk(text string) []Chunk {
	if text == "" {
		return nil
	}
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil
	}

	step := c.maxTokens - c.overlapTokens
	if step <= 0 {
		step = c.maxTokens
	}

	var chunks []Chunk
	prevStart, prevLen := 0, 0

	for start := 0; start < len(tokens); start += step {
		end := start + c.maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		content := c.enc.Decode(tokens[start:end])

		var offset int
		if len(chunks) == 0 {
			offset = 0
		} else {
			anchor := prevStart + prevLen - 100
			anchor = runeBoundaryAt(text, anchor)
			if idx := strings.Index(text[anchor:], content); idx >= 0 {
				offset = anchor + idx
			} else {
				offset = anchor
			}
		}

		chunks = append(chunks, Chunk{Index: len(chunks), Content: content, StartOffset: offset})
		prevStart, prevLen = offset, len(content)

		if end >= len(tokens) {
			break
		}
	}
	return chunks
}

// runeBoundaryAt clamps i into [0, len(s)] and advances it to the next
// UTF-8 rune boundary, so a search anchor never lands mid-codepoint.
func runeBoundaryAt(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// PageOf maps a byte offset in extracted text to a 1-indexed page number
// using the cumulative page boundaries recorded at extraction time
//. It returns the first page whose boundary exceeds offset,
// or the last page if offset is past every boundary. An empty boundary
// slice (a PDF that produced no pages) returns page 1.
func PageOf(pageBoundaries []int, offset int) int {
	if len(pageBoundaries) == 0 {
		return 1
	}
	for i, b := range pageBoundaries {
		if b > offset {
			return i + 1
		}
	}
	return len(pageBoundaries)
}
