package queries

import (
	"strings"
	"time"

	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// SearchType selects the engines a search uses.
type SearchType string

const (
	SearchTypeFullText SearchType = "FULL_TEXT"
	SearchTypeSemantic SearchType = "SEMANTIC"
	SearchTypeHybrid   SearchType = "HYBRID"
)

// MatchType records which engines found a hit.
type MatchType = SearchType

// Weights overrides the hybrid fusion weights for one query.
type Weights struct {
	FullText float64 `json:"full_text" validate:"gte=0"`
	Semantic float64 `json:"semantic" validate:"gte=0"`
}

// SearchQuery describes a search over one user's notes.
type SearchQuery struct {
	UserID      string     `json:"user_id" validate:"required"`
	Query       string     `json:"query"`
	Type        SearchType `json:"type" validate:"omitempty,oneof=FULL_TEXT SEMANTIC HYBRID"`
	DirectoryID string     `json:"directory_id"`
	Tags        []string   `json:"tags"`
	// MaxResults nil means the configured default.
	MaxResults *int     `json:"max_results"`
	Weights    *Weights `json:"weights"`
}

// Validate checks the query against the search rules.
func (q SearchQuery) Validate() error {
	if q.UserID == "" {
		return pkgerrors.NewValidationError("userID is required")
	}
	if strings.TrimSpace(q.Query) == "" {
		return pkgerrors.NewValidationError("query text is required")
	}
	switch q.Type {
	case "", SearchTypeFullText, SearchTypeSemantic, SearchTypeHybrid:
	default:
		return pkgerrors.NewValidationError("unknown search type " + string(q.Type))
	}
	if q.MaxResults != nil && *q.MaxResults <= 0 {
		return pkgerrors.NewValidationError("maxResults must be positive")
	}
	if w := q.Weights; w != nil {
		if w.FullText < 0 || w.Semantic < 0 || w.FullText+w.Semantic <= 0 {
			return pkgerrors.NewValidationError("weights must be non-negative and not both zero")
		}
	}
	return nil
}

// Limit resolves MaxResults: the default when absent, capped at the limit.
func (q SearchQuery) Limit(rules config.SearchRules) int {
	limit := rules.DefaultMaxResults
	if q.MaxResults != nil {
		limit = *q.MaxResults
	}
	if rules.MaxResultsLimit > 0 && limit > rules.MaxResultsLimit {
		limit = rules.MaxResultsLimit
	}
	return limit
}

// SearchHit is one ranked note.
type SearchHit struct {
	NoteID     string    `json:"note_id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary,omitempty"`
	Tags       []string  `json:"tags"`
	Score      float64   `json:"score"`
	MatchType  MatchType `json:"match_type"`
	Highlights []string  `json:"highlights,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SearchResult is the ranked answer to a SearchQuery. Hits are sorted by
// score, then most recent update, then note id.
type SearchResult struct {
	Hits         []SearchHit `json:"hits"`
	TotalHits    int         `json:"total_hits"`
	SearchTimeMs int64       `json:"search_time_ms"`
	Type         SearchType  `json:"type"`
}
