package aggregates

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// EdgeType defines the kind of relationship between two graph nodes
type EdgeType string

const (
	EdgeTypeManual    EdgeType = "MANUAL"
	EdgeTypeSemantic  EdgeType = "SEMANTIC"
	EdgeTypeTagShared EdgeType = "TAG_SHARED"
	EdgeTypeTagged    EdgeType = "TAGGED"
)

// IsValid reports whether t is a known edge type.
func (t EdgeType) IsValid() bool {
	switch t {
	case EdgeTypeManual, EdgeTypeSemantic, EdgeTypeTagShared, EdgeTypeTagged:
		return true
	}
	return false
}

// NodeType classifies what a graph node represents.
type NodeType string

const (
	NodeTypeNote NodeType = "note"
	NodeTypeTag  NodeType = "tag"
)

var edgeNamespace = uuid.MustParse("6f1d2c1e-3b7a-4c55-9a0e-0d6b7f2a9c11")

// Edge is a directed, weighted link. (SourceID, TargetID, Type) is unique.
type Edge struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Type      EdgeType  `json:"type"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEdge creates a validated edge. The ID is derived from the unique key so
// that the same link always gets the same ID.
func NewEdge(userID, sourceID, targetID string, edgeType EdgeType, weight float64, now time.Time) (*Edge, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	if sourceID == "" || targetID == "" {
		return nil, pkgerrors.NewValidationError("edge endpoints are required")
	}
	if sourceID == targetID {
		return nil, pkgerrors.NewValidationError("self-links are not allowed")
	}
	if !edgeType.IsValid() {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown edge type %q", edgeType))
	}
	if weight < 0 || weight > 1 {
		return nil, pkgerrors.NewValidationError("edge weight must be within 0..1")
	}
	key := EdgeKey(sourceID, targetID, edgeType)
	return &Edge{
		ID:        uuid.NewSHA1(edgeNamespace, []byte(key)).String(),
		UserID:    userID,
		SourceID:  sourceID,
		TargetID:  targetID,
		Type:      edgeType,
		Weight:    weight,
		CreatedAt: now,
	}, nil
}

// EdgeKey is the uniqueness key of an edge.
func EdgeKey(sourceID, targetID string, edgeType EdgeType) string {
	return sourceID + "->" + targetID + "#" + string(edgeType)
}

// Key returns the edge's uniqueness key.
func (e *Edge) Key() string {
	return EdgeKey(e.SourceID, e.TargetID, e.Type)
}

// Touches reports whether the edge has noteID as an endpoint.
func (e *Edge) Touches(noteID string) bool {
	return e.SourceID == noteID || e.TargetID == noteID
}

// GraphNode is a renderable vertex.
type GraphNode struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Type       NodeType       `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NoteNode converts a note into a graph node.
func NoteNode(note *entities.Note) GraphNode {
	return GraphNode{
		ID:    note.ID().String(),
		Label: note.Title(),
		Type:  NodeTypeNote,
		Properties: map[string]any{
			"tags":    note.Tags(),
			"version": note.Version(),
		},
		UpdatedAt: note.UpdatedAt(),
	}
}

// TagNode builds the node standing for a tag.
func TagNode(tag string) GraphNode {
	return GraphNode{
		ID:    TagNodeID(tag),
		Label: tag,
		Type:  NodeTypeTag,
	}
}

// TagNodeID is the graph id of a tag node.
func TagNodeID(tag string) string {
	return "tag:" + tag
}

// GraphMetadata describes how a GraphData was produced.
type GraphMetadata struct {
	NodeCount       int               `json:"node_count"`
	EdgeCount       int               `json:"edge_count"`
	Strategy        TraversalStrategy `json:"strategy,omitempty"`
	MaxDepthReached int               `json:"max_depth_reached"`
	Truncated       bool              `json:"truncated"`
}

// GraphData is a materialized view of (part of) a graph.
type GraphData struct {
	Nodes    []GraphNode   `json:"nodes"`
	Edges    []*Edge       `json:"edges"`
	Metadata GraphMetadata `json:"metadata"`
}

// HasNode reports whether the view contains id.
func (d *GraphData) HasNode(id string) bool {
	return slices.ContainsFunc(d.Nodes, func(n GraphNode) bool { return n.ID == id })
}

// NodeIDs lists node ids in view order.
func (d *GraphData) NodeIDs() []string {
	ids := make([]string, len(d.Nodes))
	for i, n := range d.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// Graph is the in-memory link graph of one user.
type Graph struct {
	userID string
	nodes  map[string]GraphNode
	edges  map[string]*Edge
	out    map[string][]*Edge
	in     map[string][]*Edge
}

// NewGraph creates an empty graph for a user.
func NewGraph(userID string) *Graph {
	return &Graph{
		userID: userID,
		nodes:  make(map[string]GraphNode),
		edges:  make(map[string]*Edge),
		out:    make(map[string][]*Edge),
		in:     make(map[string][]*Edge),
	}
}

// BuildGraph assembles a user's graph from notes and edges. Edges whose
// endpoints are not among the notes are skipped.
func BuildGraph(userID string, notes []*entities.Note, edges []*Edge) *Graph {
	g := NewGraph(userID)
	for _, note := range notes {
		if note.IsDeleted() {
			continue
		}
		g.AddNode(NoteNode(note))
	}
	for _, e := range edges {
		_ = g.AddEdge(e)
	}
	return g
}

// UserID returns the owning user.
func (g *Graph) UserID() string { return g.userID }

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(node GraphNode) {
	g.nodes[node.ID] = node
}

// AddEdge inserts an edge. Adding an edge with an existing key replaces the
// stored weight instead of creating a parallel edge.
func (g *Graph) AddEdge(e *Edge) error {
	if _, ok := g.nodes[e.SourceID]; !ok {
		return pkgerrors.NewNotFoundError("source node " + e.SourceID)
	}
	if _, ok := g.nodes[e.TargetID]; !ok {
		return pkgerrors.NewNotFoundError("target node " + e.TargetID)
	}
	if existing, ok := g.edges[e.Key()]; ok {
		existing.Weight = e.Weight
		return nil
	}
	cp := *e
	g.edges[e.Key()] = &cp
	g.out[e.SourceID] = append(g.out[e.SourceID], &cp)
	g.in[e.TargetID] = append(g.in[e.TargetID], &cp)
	return nil
}

// HasNode reports whether id is part of the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns a node by id.
func (g *Graph) Node(id string) (GraphNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Data materializes the whole graph, nodes sorted by id.
func (g *Graph) Data() *GraphData {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return g.subgraph(ids, func(*Edge) bool { return true })
}

// subgraph returns the given nodes, in order, and every admitted edge among them.
func (g *Graph) subgraph(ids []string, admit func(*Edge) bool) *GraphData {
	members := make(map[string]struct{}, len(ids))
	data := &GraphData{Nodes: make([]GraphNode, 0, len(ids)), Edges: []*Edge{}}
	for _, id := range ids {
		members[id] = struct{}{}
		data.Nodes = append(data.Nodes, g.nodes[id])
	}
	for _, e := range g.edges {
		_, src := members[e.SourceID]
		_, tgt := members[e.TargetID]
		if src && tgt && admit(e) {
			cp := *e
			data.Edges = append(data.Edges, &cp)
		}
	}
	slices.SortFunc(data.Edges, func(a, b *Edge) int {
		return strings.Compare(a.Key(), b.Key())
	})
	data.Metadata.NodeCount = len(data.Nodes)
	data.Metadata.EdgeCount = len(data.Edges)
	return data
}

// neighbor is one step away from a node.
type neighbor struct {
	id   string
	edge *Edge
}

// neighbors lists adjacent nodes in a deterministic order: weight desc, then id.
func (g *Graph) neighbors(id string, dir Direction, admit func(*Edge) bool) []neighbor {
	var result []neighbor
	if dir != DirectionIncoming {
		for _, e := range g.out[id] {
			if admit(e) {
				result = append(result, neighbor{id: e.TargetID, edge: e})
			}
		}
	}
	if dir != DirectionOutgoing {
		for _, e := range g.in[id] {
			if admit(e) {
				result = append(result, neighbor{id: e.SourceID, edge: e})
			}
		}
	}
	slices.SortFunc(result, func(a, b neighbor) int {
		switch {
		case a.edge.Weight > b.edge.Weight:
			return -1
		case a.edge.Weight < b.edge.Weight:
			return 1
		}
		if c := strings.Compare(a.id, b.id); c != 0 {
			return c
		}
		return strings.Compare(string(a.edge.Type), string(b.edge.Type))
	})
	return result
}
