package queries

import (
	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/aggregates"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// GraphQuery is a traversal request from a start note. Nil bounds take the
// configured defaults; bounds above the configured limits are capped.
type GraphQuery struct {
	UserID               string                       `json:"user_id" validate:"required"`
	StartNoteID          string                       `json:"start_note_id" validate:"required,uuid"`
	Strategy             aggregates.TraversalStrategy `json:"strategy"`
	MaxDepth             *int                         `json:"max_depth"`
	MaxNodes             *int                         `json:"max_nodes"`
	LinkTypes            []aggregates.EdgeType        `json:"link_types"`
	IncludeSemanticLinks *bool                        `json:"include_semantic_links"`
	SemanticThreshold    *float64                     `json:"semantic_threshold"`
	Direction            aggregates.Direction         `json:"direction"`
}

// Options resolves the query into traversal options and validates them.
func (q GraphQuery) Options(rules config.GraphRules) (aggregates.TraversalOptions, error) {
	if q.UserID == "" {
		return aggregates.TraversalOptions{}, pkgerrors.NewValidationError("userID is required")
	}
	opts := aggregates.TraversalOptions{
		Strategy:             q.Strategy,
		MaxDepth:             rules.DefaultMaxDepth,
		MaxNodes:             rules.DefaultMaxNodes,
		LinkTypes:            q.LinkTypes,
		IncludeSemanticLinks: true,
		SemanticThreshold:    rules.SemanticThreshold,
		Direction:            q.Direction,
	}
	if opts.Strategy == "" {
		opts.Strategy = aggregates.BreadthFirst
	}
	if opts.Direction == "" {
		opts.Direction = aggregates.DirectionBoth
	}
	if q.MaxDepth != nil {
		opts.MaxDepth = *q.MaxDepth
	}
	if q.MaxNodes != nil {
		opts.MaxNodes = *q.MaxNodes
	}
	if q.IncludeSemanticLinks != nil {
		opts.IncludeSemanticLinks = *q.IncludeSemanticLinks
	}
	if q.SemanticThreshold != nil {
		opts.SemanticThreshold = *q.SemanticThreshold
	}
	if err := opts.Validate(); err != nil {
		return aggregates.TraversalOptions{}, err
	}
	opts.MaxDepth = min(opts.MaxDepth, rules.MaxDepthLimit)
	opts.MaxNodes = min(opts.MaxNodes, rules.MaxNodesLimit)
	return opts, nil
}
