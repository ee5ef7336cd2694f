package embedding

import (
	"strings"
	"testing"

	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecursiveChunker_Split(t *testing.T) {
	rules := config.DefaultDomainConfig().Embedding
	rules.ChunkSize = 100
	rules.ChunkOverlap = 10
	chunker := NewRecursiveChunker(rules)

	tests := []struct {
		name      string
		text      string
		wantCount func(n int) bool
	}{
		{"blank text", "   \n ", func(n int) bool { return n == 0 }},
		{"short text is one chunk", "a short note", func(n int) bool { return n == 1 }},
		{"long text is split", strings.Repeat("word ", 200), func(n int) bool { return n > 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := chunker.Split(tt.text)
			require.NoError(t, err)
			assert.True(t, tt.wantCount(len(chunks)), "got %d chunks", len(chunks))
			for _, c := range chunks {
				assert.LessOrEqual(t, len(c), rules.ChunkSize)
			}
		})
	}
}
