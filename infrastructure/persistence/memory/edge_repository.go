package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/aggregates"
)

// EdgeRepository keeps edges per user keyed by (source, target, type).
type EdgeRepository struct {
	mu    sync.RWMutex
	edges map[string]map[string]aggregates.Edge
}

var _ ports.EdgeRepository = (*EdgeRepository)(nil)

func NewEdgeRepository() *EdgeRepository {
	return &EdgeRepository{edges: make(map[string]map[string]aggregates.Edge)}
}

// Save upserts an edge.
func (r *EdgeRepository) Save(ctx context.Context, edge *aggregates.Edge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byKey, ok := r.edges[edge.UserID]
	if !ok {
		byKey = make(map[string]aggregates.Edge)
		r.edges[edge.UserID] = byKey
	}
	byKey[edge.Key()] = *edge
	return nil
}

func (r *EdgeRepository) GetByUserID(ctx context.Context, userID string) ([]*aggregates.Edge, error) {
	return r.collect(userID, func(*aggregates.Edge) bool { return true }), nil
}

func (r *EdgeRepository) GetByNoteID(ctx context.Context, userID, noteID string) ([]*aggregates.Edge, error) {
	return r.collect(userID, func(e *aggregates.Edge) bool { return e.Touches(noteID) }), nil
}

func (r *EdgeRepository) DeleteByNoteID(ctx context.Context, userID, noteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, edge := range r.edges[userID] {
		if edge.Touches(noteID) {
			delete(r.edges[userID], key)
		}
	}
	return nil
}

func (r *EdgeRepository) collect(userID string, keep func(*aggregates.Edge) bool) []*aggregates.Edge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*aggregates.Edge
	for _, edge := range r.edges[userID] {
		e := edge
		if keep(&e) {
			out = append(out, &e)
		}
	}
	slices.SortFunc(out, func(a, b *aggregates.Edge) int {
		return strings.Compare(a.Key(), b.Key())
	})
	return out
}
