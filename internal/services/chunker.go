package services

import (
	"strings"
	"unicode/utf8"
)

// TextChunker splits reference documents into overlapping chunks for embedding.
// Paragraphs are kept whole when they fit; longer ones are split on sentences.
type TextChunker struct {
	MaxSize int
	Overlap int
}

func NewTextChunker(maxSize, overlap int) *TextChunker {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize / 4
	}
	return &TextChunker{MaxSize: maxSize, Overlap: overlap}
}

type chunkBuilder struct {
	chunks  []string
	current strings.Builder
	max     int
	overlap int
}

// add appends piece with sep, flushing first when the piece would overflow.
func (b *chunkBuilder) add(piece, sep string) {
	if b.current.Len() > 0 && b.current.Len()+len(piece)+len(sep) > b.max {
		prev := b.current.String()
		b.chunks = append(b.chunks, prev)
		b.current.Reset()
		if tail := lastRunes(prev, b.overlap); tail != "" {
			b.current.WriteString(tail)
		}
	}
	if b.current.Len() > 0 {
		b.current.WriteString(sep)
	}
	b.current.WriteString(piece)
}

func (b *chunkBuilder) finish() []string {
	if b.current.Len() > 0 {
		b.chunks = append(b.chunks, b.current.String())
	}
	return b.chunks
}

func (c *TextChunker) Chunk(text string) []string {
	b := &chunkBuilder{max: c.MaxSize, overlap: c.Overlap}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(para) <= c.MaxSize {
			b.add(para, "\n\n")
			continue
		}
		for _, sentence := range splitSentences(para) {
			b.add(sentence, " ")
		}
	}

	return b.finish()
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func lastRunes(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}
