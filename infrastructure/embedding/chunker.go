package embedding

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	"github.com/tmc/langchaingo/textsplitter"
)

// RecursiveChunker splits on paragraph, line, word and character
// boundaries, in that order of preference.
type RecursiveChunker struct {
	chunkSize int
	splitter  textsplitter.RecursiveCharacter
}

var _ ports.TextChunker = (*RecursiveChunker)(nil)

// NewRecursiveChunker builds a chunker from the embedding rules.
func NewRecursiveChunker(rules config.EmbeddingRules) *RecursiveChunker {
	split := textsplitter.NewRecursiveCharacter()
	split.ChunkSize = rules.ChunkSize
	split.ChunkOverlap = rules.ChunkOverlap
	return &RecursiveChunker{chunkSize: rules.ChunkSize, splitter: split}
}

// Split returns the chunks of text. Short text is returned unchanged as a
// single chunk; blank text yields none.
func (c *RecursiveChunker) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if c.chunkSize <= 0 || utf8.RuneCountInString(text) <= c.chunkSize {
		return []string{text}, nil
	}
	chunks, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	out := chunks[:0]
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) != "" {
			out = append(out, chunk)
		}
	}
	return out, nil
}
