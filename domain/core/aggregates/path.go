package aggregates

import (
	"slices"

	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// ShortestPath returns a minimum-hop path from source to target using BFS.
// Edges are followed in both directions unless directed is set. An empty
// slice means target is unreachable.
func (g *Graph) ShortestPath(sourceID, targetID string, directed bool) ([]string, error) {
	if !g.HasNode(sourceID) {
		return nil, pkgerrors.NewNotFoundError("note " + sourceID)
	}
	if !g.HasNode(targetID) {
		return nil, pkgerrors.NewNotFoundError("note " + targetID)
	}
	if sourceID == targetID {
		return []string{sourceID}, nil
	}

	dir := DirectionBoth
	if directed {
		dir = DirectionOutgoing
	}
	all := func(*Edge) bool { return true }

	visited := map[string]bool{sourceID: true}
	parent := make(map[string]string)
	queue := []string{sourceID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, nb := range g.neighbors(current, dir, all) {
			if visited[nb.id] {
				continue
			}
			visited[nb.id] = true
			parent[nb.id] = current
			if nb.id == targetID {
				return reconstructPath(parent, sourceID, targetID), nil
			}
			queue = append(queue, nb.id)
		}
	}

	return []string{}, nil
}

func reconstructPath(parent map[string]string, sourceID, targetID string) []string {
	path := []string{targetID}
	for n := targetID; n != sourceID; {
		n = parent[n]
		path = append(path, n)
	}
	slices.Reverse(path)
	return path
}
