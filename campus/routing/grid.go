package routing

import "github.com/wricardo/campus-charging-sim/campus/layout"

// PassableGrid is the read-only view GridRouter searches over
type PassableGrid interface {
	Passable(p layout.GridPosition) bool
}

// GridRouter finds a shortest 4-connected path over passable cells.
// When the goal is unreachable it falls back to the Manhattan route.
type GridRouter struct {
	Grid PassableGrid
}

var directions = []layout.GridPosition{{X: 0, Y: 1}, {X: 0, Y: -1}, {X: 1, Y: 0}, {X: -1, Y: 0}}

// Route implements FreeRouter
func (r GridRouter) Route(from, to layout.GridPosition) []layout.GridPosition {
	if path, ok := r.ShortestPath(from, to); ok {
		return path
	}
	return BuildFreeRoute(from, to)
}

// ShortestPath runs a breadth-first search from from to to. The returned path
// excludes from. ok is false when either endpoint is blocked or no path exists.
func (r GridRouter) ShortestPath(from, to layout.GridPosition) ([]layout.GridPosition, bool) {
	if r.Grid == nil || !r.Grid.Passable(from) || !r.Grid.Passable(to) {
		return nil, false
	}
	if from == to {
		return []layout.GridPosition{}, true
	}

	parent := map[layout.GridPosition]layout.GridPosition{}
	visited := map[layout.GridPosition]bool{from: true}
	queue := []layout.GridPosition{from}
	found := false

	for len(queue) > 0 && !found {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range directions {
			next := layout.GridPosition{X: cur.X + d.X, Y: cur.Y + d.Y}
			if visited[next] || !r.Grid.Passable(next) {
				continue
			}
			visited[next] = true
			parent[next] = cur
			if next == to {
				found = true
				break
			}
			queue = append(queue, next)
		}
	}
	if !found {
		return nil, false
	}

	var path []layout.GridPosition
	for cur := to; cur != from; cur = parent[cur] {
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, true
}
