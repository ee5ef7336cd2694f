package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/application/queries"
	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/aggregates"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
	"github.com/artgluhovskiy/vertex-sub001/pkg/observability"
)

// GraphService loads a user's link graph and runs traversals on it.
type GraphService struct {
	notes    ports.NoteRepository
	edges    ports.EdgeRepository
	rules    config.GraphRules
	recorder observability.Recorder
	logger   *zap.Logger
}

// NewGraphService creates a new graph service
func NewGraphService(
	notes ports.NoteRepository,
	edges ports.EdgeRepository,
	domainConfig *config.DomainConfig,
	recorder observability.Recorder,
	logger *zap.Logger,
) *GraphService {
	if recorder == nil {
		recorder = observability.NopRecorder{}
	}
	return &GraphService{
		notes:    notes,
		edges:    edges,
		rules:    domainConfig.Graph,
		recorder: recorder,
		logger:   logger,
	}
}

// GetNodeGraph returns everything reachable from noteID within depth hops,
// following links in both directions.
func (s *GraphService) GetNodeGraph(ctx context.Context, userID, noteID string, depth int) (*aggregates.GraphData, error) {
	if depth <= 0 {
		return nil, pkgerrors.NewValidationError("depth must be positive")
	}
	return s.ExecuteGraphQuery(ctx, queries.GraphQuery{
		UserID:      userID,
		StartNoteID: noteID,
		Strategy:    aggregates.BreadthFirst,
		MaxDepth:    &depth,
		Direction:   aggregates.DirectionBoth,
	})
}

// ExecuteGraphQuery traverses from the query's start note.
func (s *GraphService) ExecuteGraphQuery(ctx context.Context, q queries.GraphQuery) (data *aggregates.GraphData, err error) {
	opts, err := q.Options(s.rules)
	if err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, tracerName, "GraphService.ExecuteGraphQuery",
		attribute.String("user.id", q.UserID),
		attribute.String("graph.strategy", string(opts.Strategy)))
	defer func() { observability.EndSpan(span, err) }()

	graph, err := s.loadGraph(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	data, err = graph.Traverse(q.StartNoteID, opts)
	if err != nil {
		return nil, err
	}

	s.recorder.ObserveTraversal(string(opts.Strategy), data.Metadata.NodeCount, data.Metadata.Truncated)
	s.logger.Debug("Graph traversal completed",
		zap.String("userID", q.UserID),
		zap.String("start", q.StartNoteID),
		zap.String("strategy", string(opts.Strategy)),
		zap.Int("nodes", data.Metadata.NodeCount),
		zap.Bool("truncated", data.Metadata.Truncated))
	return data, nil
}

// GetUserGraph returns all of a user's notes and the links among them,
// optionally with a node per tag. Above MaxNodesLimit only the most recently
// updated notes are kept and the result is marked truncated.
func (s *GraphService) GetUserGraph(ctx context.Context, userID string, includeTags bool) (*aggregates.GraphData, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID is required")
	}
	notes, err := s.notes.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notes: %w", err)
	}
	notes = slices.DeleteFunc(notes, func(n *entities.Note) bool { return n.IsDeleted() })

	truncated := false
	if limit := s.rules.MaxNodesLimit; limit > 0 && len(notes) > limit {
		slices.SortFunc(notes, func(a, b *entities.Note) int {
			if c := b.UpdatedAt().Compare(a.UpdatedAt()); c != 0 {
				return c
			}
			return cmp.Compare(a.ID().String(), b.ID().String())
		})
		notes = notes[:limit]
		truncated = true
	}

	edges, err := s.edges.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}
	graph := aggregates.BuildGraph(userID, notes, edges)

	if includeTags {
		for _, note := range notes {
			for _, tag := range note.Tags() {
				graph.AddNode(aggregates.TagNode(tag))
				edge, err := aggregates.NewEdge(userID, note.ID().String(), aggregates.TagNodeID(tag), aggregates.EdgeTypeTagged, 1, note.UpdatedAt())
				if err != nil {
					return nil, err
				}
				if err := graph.AddEdge(edge); err != nil {
					return nil, err
				}
			}
		}
	}

	data := graph.Data()
	data.Metadata.Truncated = truncated
	return data, nil
}

// FindShortestPath returns the minimum-hop path between two notes, or an
// empty slice when they are not connected.
func (s *GraphService) FindShortestPath(ctx context.Context, userID, sourceID, targetID string, directed bool) ([]string, error) {
	if sourceID == "" || targetID == "" {
		return nil, pkgerrors.NewValidationError("source and target are required")
	}
	graph, err := s.loadGraph(ctx, userID)
	if err != nil {
		return nil, err
	}
	path, err := graph.ShortestPath(sourceID, targetID, directed)
	if err != nil {
		return nil, err
	}
	if path == nil {
		path = []string{}
	}
	return path, nil
}

// loadGraph builds the user's full link graph.
func (s *GraphService) loadGraph(ctx context.Context, userID string) (*aggregates.Graph, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID is required")
	}
	notes, err := s.notes.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notes: %w", err)
	}
	edges, err := s.edges.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}
	return aggregates.BuildGraph(userID, notes, edges), nil
}
