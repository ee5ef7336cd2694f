package config

import (
	"fmt"
	"time"
)

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	Note      NoteRules
	Search    SearchRules
	Graph     GraphRules
	Embedding EmbeddingRules
	Sync      SyncRules
}

// NoteRules constrain note content.
type NoteRules struct {
	MinTitleLength   int
	MaxTitleLength   int
	MaxContentLength int
	MaxTagsPerNote   int
}

// SearchRules tune lexical scoring and hybrid fusion.
type SearchRules struct {
	DefaultMaxResults   int
	MaxResultsLimit     int
	FullTextWeight      float64
	SemanticWeight      float64
	CandidateMultiplier int
	TitleBoost          float64
	TagBoost            float64
	BM25K1              float64
	BM25B               float64
	HighlightFragments  int
	FragmentRadius      int
}

// GraphRules bound traversals.
type GraphRules struct {
	DefaultMaxDepth     int
	DefaultMaxNodes     int
	MaxDepthLimit       int
	MaxNodesLimit       int
	SemanticThreshold   float64
	SuggestedLinkLimit  int
	TagSharedMinJaccard float64
}

// EmbeddingRules describe the embedding model contract.
type EmbeddingRules struct {
	Model        string
	Dimension    int
	MaxBatchSize int
	ChunkSize    int
	ChunkOverlap int
	MaxRetries   int
	RetryBackoff time.Duration
	Parallelism  int
}

// SyncRules control reconciliation.
type SyncRules struct {
	MaxNotesPerPass int
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		Note: NoteRules{
			MinTitleLength:   1,
			MaxTitleLength:   512,
			MaxContentLength: 1 << 20,
			MaxTagsPerNote:   64,
		},
		Search: SearchRules{
			DefaultMaxResults:   20,
			MaxResultsLimit:     200,
			FullTextWeight:      0.5,
			SemanticWeight:      0.5,
			CandidateMultiplier: 3,
			TitleBoost:          3.0,
			TagBoost:            2.0,
			BM25K1:              1.2,
			BM25B:               0.75,
			HighlightFragments:  3,
			FragmentRadius:      40,
		},
		Graph: GraphRules{
			DefaultMaxDepth:     2,
			DefaultMaxNodes:     500,
			MaxDepthLimit:       10,
			MaxNodesLimit:       5000,
			SemanticThreshold:   0.5,
			SuggestedLinkLimit:  10,
			TagSharedMinJaccard: 0.2,
		},
		Embedding: EmbeddingRules{
			Model:        "nomic-embed-text",
			Dimension:    768,
			MaxBatchSize: 32,
			ChunkSize:    1500,
			ChunkOverlap: 150,
			MaxRetries:   3,
			RetryBackoff: 200 * time.Millisecond,
			Parallelism:  4,
		},
		Sync: SyncRules{
			MaxNotesPerPass: 10000,
		},
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.Graph.MaxNodesLimit = 2000
	config.Search.MaxResultsLimit = 100
	config.Embedding.MaxRetries = 5
	config.Embedding.RetryBackoff = 500 * time.Millisecond

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// The local hashing provider is cheap, so keep vectors small and retries short.
	config.Embedding.Model = "local-hash"
	config.Embedding.Dimension = 256
	config.Embedding.RetryBackoff = 10 * time.Millisecond

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.Search.DefaultMaxResults <= 0 || c.Search.DefaultMaxResults > c.Search.MaxResultsLimit {
		return fmt.Errorf("search default max results must be in 1..%d", c.Search.MaxResultsLimit)
	}
	if c.Search.FullTextWeight < 0 || c.Search.SemanticWeight < 0 {
		return fmt.Errorf("fusion weights must be non-negative")
	}
	if c.Search.FullTextWeight+c.Search.SemanticWeight <= 0 {
		return fmt.Errorf("fusion weights must not both be zero")
	}
	if c.Search.CandidateMultiplier < 1 {
		return fmt.Errorf("candidate multiplier must be at least 1")
	}
	if c.Graph.DefaultMaxDepth <= 0 || c.Graph.DefaultMaxNodes <= 0 {
		return fmt.Errorf("graph defaults must be positive")
	}
	if c.Graph.SemanticThreshold < 0 || c.Graph.SemanticThreshold > 1 {
		return fmt.Errorf("semantic threshold must be within 0..1")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}
	if c.Embedding.MaxBatchSize <= 0 {
		return fmt.Errorf("embedding batch size must be positive")
	}
	if c.Embedding.ChunkOverlap >= c.Embedding.ChunkSize {
		return fmt.Errorf("chunk overlap must be smaller than chunk size")
	}
	return nil
}
