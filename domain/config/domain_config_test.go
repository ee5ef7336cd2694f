package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDomainConfig(t *testing.T) {
	tests := []struct {
		env           string
		wantModel     string
		wantDimension int
	}{
		{"production", "nomic-embed-text", 768},
		{"development", "local-hash", 256},
		{"staging", "nomic-embed-text", 768},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := LoadDomainConfig(tt.env)

			assert.Equal(t, tt.wantModel, cfg.Embedding.Model)
			assert.Equal(t, tt.wantDimension, cfg.Embedding.Dimension)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DomainConfig)
	}{
		{"zero weights", func(c *DomainConfig) { c.Search.FullTextWeight = 0; c.Search.SemanticWeight = 0 }},
		{"negative weight", func(c *DomainConfig) { c.Search.SemanticWeight = -0.1 }},
		{"threshold above one", func(c *DomainConfig) { c.Graph.SemanticThreshold = 1.5 }},
		{"non-positive depth", func(c *DomainConfig) { c.Graph.DefaultMaxDepth = 0 }},
		{"overlap too large", func(c *DomainConfig) { c.Embedding.ChunkOverlap = c.Embedding.ChunkSize }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDomainConfig()
			tt.mutate(cfg)

			assert.Error(t, cfg.Validate())
		})
	}
}
