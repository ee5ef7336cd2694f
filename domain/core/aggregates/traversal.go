package aggregates

import (
	"container/heap"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// TraversalStrategy selects the frontier discipline of a traversal.
type TraversalStrategy string

const (
	BreadthFirst        TraversalStrategy = "BREADTH_FIRST"
	DepthFirst          TraversalStrategy = "DEPTH_FIRST"
	WeightedByRelevance TraversalStrategy = "WEIGHTED_BY_RELEVANCE"
	TemporalRecentFirst TraversalStrategy = "TEMPORAL_RECENT_FIRST"
)

// IsValid reports whether s is a known strategy.
func (s TraversalStrategy) IsValid() bool {
	switch s {
	case BreadthFirst, DepthFirst, WeightedByRelevance, TemporalRecentFirst:
		return true
	}
	return false
}

// Direction restricts which edges a traversal may follow.
type Direction string

const (
	DirectionOutgoing Direction = "OUTGOING"
	DirectionIncoming Direction = "INCOMING"
	DirectionBoth     Direction = "BOTH"
)

// TraversalOptions bound and filter a traversal.
type TraversalOptions struct {
	Strategy             TraversalStrategy
	MaxDepth             int
	MaxNodes             int
	LinkTypes            []EdgeType
	IncludeSemanticLinks bool
	SemanticThreshold    float64
	Direction            Direction
}

// Validate checks the options.
func (o TraversalOptions) Validate() error {
	if !o.Strategy.IsValid() {
		return pkgerrors.NewValidationError(fmt.Sprintf("unknown traversal strategy %q", o.Strategy))
	}
	if o.MaxDepth <= 0 {
		return pkgerrors.NewValidationError("maxDepth must be positive")
	}
	if o.MaxNodes <= 0 {
		return pkgerrors.NewValidationError("maxNodes must be positive")
	}
	if o.SemanticThreshold < 0 || o.SemanticThreshold > 1 {
		return pkgerrors.NewValidationError("semanticThreshold must be within 0..1")
	}
	switch o.Direction {
	case "", DirectionOutgoing, DirectionIncoming, DirectionBoth:
	default:
		return pkgerrors.NewValidationError(fmt.Sprintf("unknown direction %q", o.Direction))
	}
	for _, t := range o.LinkTypes {
		if !t.IsValid() {
			return pkgerrors.NewValidationError(fmt.Sprintf("unknown link type %q", t))
		}
	}
	return nil
}

// admits is the edge filter, applied before a neighbor is queued.
func (o TraversalOptions) admits(e *Edge) bool {
	if len(o.LinkTypes) > 0 && !slices.Contains(o.LinkTypes, e.Type) {
		return false
	}
	if e.Type == EdgeTypeSemantic && !o.IncludeSemanticLinks {
		return false
	}
	if o.Strategy == WeightedByRelevance && o.IncludeSemanticLinks && e.Weight < o.SemanticThreshold {
		return false
	}
	return true
}

func (o TraversalOptions) direction() Direction {
	if o.Direction == "" {
		return DirectionBoth
	}
	return o.Direction
}

// Traverse walks the graph from start. Every node is emitted at most once;
// the walk stops after MaxNodes emissions and never expands a node at MaxDepth.
func (g *Graph) Traverse(start string, opts TraversalOptions) (*GraphData, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if !g.HasNode(start) {
		return nil, pkgerrors.NewNotFoundError("note " + start)
	}

	f := newFrontier(opts.Strategy)
	visited := make(map[string]bool)
	// BFS marks on discovery so the first (shallowest) route wins; the other
	// strategies settle a node only when it is popped.
	markOnPush := opts.Strategy == BreadthFirst
	if markOnPush {
		visited[start] = true
	}
	f.push(&frontierItem{id: start, relevance: 1, updatedAt: g.nodes[start].UpdatedAt, weight: 1})

	emitted := make([]string, 0, min(opts.MaxNodes, len(g.nodes)))
	depths := make(map[string]int)
	maxDepthReached := 0
	dir := opts.direction()

	for f.len() > 0 && len(emitted) < opts.MaxNodes {
		item := f.pop()
		if !markOnPush {
			if visited[item.id] {
				continue
			}
			visited[item.id] = true
		}
		emitted = append(emitted, item.id)
		depths[item.id] = item.depth
		maxDepthReached = max(maxDepthReached, item.depth)

		if item.depth >= opts.MaxDepth {
			continue
		}
		for _, nb := range g.neighbors(item.id, dir, opts.admits) {
			if visited[nb.id] {
				continue
			}
			if markOnPush {
				visited[nb.id] = true
			}
			f.push(&frontierItem{
				id:        nb.id,
				depth:     item.depth + 1,
				relevance: item.relevance * nb.edge.Weight,
				updatedAt: g.nodes[nb.id].UpdatedAt,
				weight:    nb.edge.Weight,
			})
		}
	}

	data := g.subgraph(emitted, opts.admits)
	for i := range data.Nodes {
		props := maps.Clone(data.Nodes[i].Properties)
		if props == nil {
			props = make(map[string]any)
		}
		props["depth"] = depths[data.Nodes[i].ID]
		data.Nodes[i].Properties = props
	}
	data.Metadata.Strategy = opts.Strategy
	data.Metadata.MaxDepthReached = maxDepthReached
	data.Metadata.Truncated = len(emitted) >= opts.MaxNodes && hasUnvisitedItems(f.items(), visited, markOnPush)
	return data, nil
}

type frontierItem struct {
	id        string
	depth     int
	relevance float64
	updatedAt time.Time
	weight    float64
	seq       int
}

type frontier interface {
	push(*frontierItem)
	pop() *frontierItem
	len() int
	items() []*frontierItem
}

// hasUnvisitedItems reports whether anything left in the frontier would still
// have been emitted.
func hasUnvisitedItems(items []*frontierItem, visited map[string]bool, markOnPush bool) bool {
	if markOnPush {
		return len(items) > 0
	}
	for _, it := range items {
		if !visited[it.id] {
			return true
		}
	}
	return false
}

func newFrontier(strategy TraversalStrategy) frontier {
	switch strategy {
	case DepthFirst:
		return &stackFrontier{}
	case WeightedByRelevance:
		return &priorityFrontier{h: &itemHeap{less: byRelevance}}
	case TemporalRecentFirst:
		return &priorityFrontier{h: &itemHeap{less: byRecency}}
	default:
		return &queueFrontier{}
	}
}

type queueFrontier struct{ q []*frontierItem }

func (f *queueFrontier) push(it *frontierItem) { f.q = append(f.q, it) }
func (f *queueFrontier) pop() *frontierItem {
	it := f.q[0]
	f.q[0] = nil
	f.q = f.q[1:]
	return it
}
func (f *queueFrontier) len() int               { return len(f.q) }
func (f *queueFrontier) items() []*frontierItem { return f.q }

// stackFrontier yields pre-order. Neighbors arrive best-first, so a batch of
// siblings is pushed in reverse to pop the best one first.
type stackFrontier struct {
	s       []*frontierItem
	pending []*frontierItem
}

func (f *stackFrontier) push(it *frontierItem) { f.pending = append(f.pending, it) }
func (f *stackFrontier) flush() {
	for i := len(f.pending) - 1; i >= 0; i-- {
		f.s = append(f.s, f.pending[i])
	}
	f.pending = f.pending[:0]
}
func (f *stackFrontier) pop() *frontierItem {
	f.flush()
	it := f.s[len(f.s)-1]
	f.s = f.s[:len(f.s)-1]
	return it
}
func (f *stackFrontier) len() int { return len(f.s) + len(f.pending) }
func (f *stackFrontier) items() []*frontierItem {
	return append(slices.Clone(f.s), f.pending...)
}

type priorityFrontier struct {
	h   *itemHeap
	seq int
}

func (f *priorityFrontier) push(it *frontierItem) {
	f.seq++
	it.seq = f.seq
	heap.Push(f.h, it)
}
func (f *priorityFrontier) pop() *frontierItem     { return heap.Pop(f.h).(*frontierItem) }
func (f *priorityFrontier) len() int               { return f.h.Len() }
func (f *priorityFrontier) items() []*frontierItem { return f.h.items }

type itemHeap struct {
	items []*frontierItem
	less  func(a, b *frontierItem) bool
}

func (h *itemHeap) Len() int           { return len(h.items) }
func (h *itemHeap) Less(i, j int) bool { return h.less(h.items[i], h.items[j]) }
func (h *itemHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *itemHeap) Push(x any)         { h.items = append(h.items, x.(*frontierItem)) }
func (h *itemHeap) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return it
}

// byRelevance orders by cumulative path weight, strongest first.
func byRelevance(a, b *frontierItem) bool {
	if a.relevance != b.relevance {
		return a.relevance > b.relevance
	}
	if a.depth != b.depth {
		return a.depth < b.depth
	}
	if a.id != b.id {
		return strings.Compare(a.id, b.id) < 0
	}
	return a.seq < b.seq
}

// byRecency orders by the neighbor's last update, then by link weight.
func byRecency(a, b *frontierItem) bool {
	if !a.updatedAt.Equal(b.updatedAt) {
		return a.updatedAt.After(b.updatedAt)
	}
	if a.weight != b.weight {
		return a.weight > b.weight
	}
	if a.id != b.id {
		return strings.Compare(a.id, b.id) < 0
	}
	return a.seq < b.seq
}
