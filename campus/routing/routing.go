// Package routing builds waypoint routes for vehicles and charging robots.
//
// Vehicles follow a directional lane loop: both endpoints are snapped to their
// nearest loop waypoint and the circular sub-sequence between them is extracted.
// Robots are not bound to roads and use a free route between two grid points.
// Both concerns sit behind small strategy interfaces so alternative pathfinders
// can replace the defaults without touching the state machines.
package routing

import (
	"errors"
	"math"

	"github.com/wricardo/campus-charging-sim/campus/layout"
)

var ErrEmptyLoop = errors.New("routing: lane loop is empty")

// LaneRouter extracts a route along a lane loop
type LaneRouter interface {
	Route(loop layout.LaneLoop, from, to layout.GridPosition) ([]layout.GridPosition, error)
}

// FreeRouter produces an unconstrained route between two grid points.
// The route excludes from and ends at to.
type FreeRouter interface {
	Route(from, to layout.GridPosition) []layout.GridPosition
}

// LoopRouter is the default LaneRouter
type LoopRouter struct{}

// Route implements LaneRouter
func (LoopRouter) Route(loop layout.LaneLoop, from, to layout.GridPosition) ([]layout.GridPosition, error) {
	return BuildLaneRoute(loop, from, to)
}

// ManhattanRouter is the default FreeRouter
type ManhattanRouter struct{}

// Route implements FreeRouter
func (ManhattanRouter) Route(from, to layout.GridPosition) []layout.GridPosition {
	return BuildFreeRoute(from, to)
}

// Snap returns the index of the loop waypoint nearest to p.
// Ties go to the first waypoint in loop order.
func Snap(loop layout.LaneLoop, p layout.GridPosition) (int, error) {
	if len(loop) == 0 {
		return -1, ErrEmptyLoop
	}
	best := 0
	bestDist := math.Inf(1)
	for i, wp := range loop {
		if d := wp.Distance(p); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, nil
}

// BuildLaneRoute snaps both points onto the loop and returns the inclusive
// circular sub-sequence from the first snap to the second. When the start
// index is past the end index the route wraps through the end of the loop.
func BuildLaneRoute(loop layout.LaneLoop, from, to layout.GridPosition) ([]layout.GridPosition, error) {
	i, err := Snap(loop, from)
	if err != nil {
		return nil, err
	}
	j, err := Snap(loop, to)
	if err != nil {
		return nil, err
	}

	if i <= j {
		route := make([]layout.GridPosition, 0, j-i+1)
		return append(route, loop[i:j+1]...), nil
	}
	route := make([]layout.GridPosition, 0, len(loop)-i+j+1)
	route = append(route, loop[i:]...)
	return append(route, loop[:j+1]...), nil
}

// BuildFreeRoute closes the x gap one cell at a time, then the y gap.
// Obstacles are ignored.
func BuildFreeRoute(from, to layout.GridPosition) []layout.GridPosition {
	route := make([]layout.GridPosition, 0, abs(to.X-from.X)+abs(to.Y-from.Y))
	x, y := from.X, from.Y
	for x != to.X {
		x += sign(to.X - x)
		route = append(route, layout.GridPosition{X: x, Y: y})
	}
	for y != to.Y {
		y += sign(to.Y - y)
		route = append(route, layout.GridPosition{X: x, Y: y})
	}
	return route
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
