package layout

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
)

var (
	ErrGridTooSmall   = errors.New("grid too small for ring road")
	ErrInvalidOptions = errors.New("invalid layout options")
)

// Options controls layout generation
type Options struct {
	Width     int `json:"width"`
	Height    int `json:"height"`
	Buildings int `json:"buildings"`
	Stations  int `json:"stations"`
	Gates     int `json:"gates"`
}

// Layout is the static campus: grid, parking spots, gates, chargers and lane loops.
// It never changes after Generate returns.
type Layout struct {
	width      int
	height     int
	roadOffset int
	roadWidth  int
	grid       [][]CellKind
	spots      []ParkingSpot
	gates      []GateRegion
	stations   []GridPosition
	inner      LaneLoop
	outer      LaneLoop
}

// Generate builds a campus layout. rng drives gate, building and charger placement.
func Generate(opts Options, rng *rand.Rand) (*Layout, error) {
	if opts.Width < MinGridSize || opts.Height < MinGridSize {
		return nil, fmt.Errorf("%w: need at least %dx%d, got %dx%d", ErrGridTooSmall, MinGridSize, MinGridSize, opts.Width, opts.Height)
	}
	if opts.Width > MaxGridSize || opts.Height > MaxGridSize {
		return nil, fmt.Errorf("%w: grid may not exceed %dx%d", ErrInvalidOptions, MaxGridSize, MaxGridSize)
	}
	if opts.Buildings < 0 || opts.Stations < 0 || opts.Gates < 0 {
		return nil, fmt.Errorf("%w: counts must be non-negative", ErrInvalidOptions)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidOptions)
	}

	l := &Layout{
		width:      opts.Width,
		height:     opts.Height,
		roadOffset: DefaultRoadOffset,
		roadWidth:  DefaultRoadWidth,
	}
	l.grid = make([][]CellKind, l.height)
	for y := range l.grid {
		l.grid[y] = make([]CellKind, l.width)
		for x := range l.grid[y] {
			l.grid[y][x] = Empty
		}
	}

	l.paintRingRoads()
	l.placeParkingSpots()
	l.placeGates(opts.Gates, rng)
	l.paintSpots()
	l.placeBuildings(opts.Buildings, rng)
	l.placeChargers(opts.Stations, rng)
	l.inner = l.buildInnerLoop()
	l.outer = l.buildOuterLoop()

	return l, nil
}

func (l *Layout) fill(x1, y1, x2, y2 int, kind CellKind) {
	for y := max(y1, 0); y < min(y2, l.height); y++ {
		for x := max(x1, 0); x < min(x2, l.width); x++ {
			l.grid[y][x] = kind
		}
	}
}

func (l *Layout) paintRingRoads() {
	w, h, rw, width := l.width, l.height, l.roadOffset, l.roadWidth
	l.fill(rw, rw, rw+width, h-rw, Road)
	l.fill(w-rw-width, rw, w-rw, h-rw, Road)
	l.fill(rw, rw, w-rw, rw+width, Road)
	l.fill(rw, h-rw-width, w-rw, h-rw, Road)
}

func (l *Layout) placeParkingSpots() {
	w, h, rw := l.width, l.height, l.roadOffset
	for x := rw + 2; x < w-rw-2; x += 2 {
		l.spots = append(l.spots,
			ParkingSpot{X1: x, Y1: 0, X2: x + 2, Y2: rw},
			ParkingSpot{X1: x, Y1: h - rw, X2: x + 2, Y2: h},
		)
	}
	for y := rw + 2; y < h-rw-2; y += 2 {
		l.spots = append(l.spots,
			ParkingSpot{X1: 0, Y1: y, X2: rw, Y2: y + 2, Horizontal: true},
			ParkingSpot{X1: w - rw, Y1: y, X2: w, Y2: y + 2, Horizontal: true},
		)
	}
}

func (l *Layout) edgeOf(s ParkingSpot) Edge {
	switch {
	case s.Y1 == 0:
		return EdgeTop
	case s.Y2 == l.height:
		return EdgeBottom
	case s.X1 == 0:
		return EdgeLeft
	default:
		return EdgeRight
	}
}

// placeGates turns three consecutive spots on randomly chosen edges into gates.
// Spots covered by a gate stop being parking spots.
func (l *Layout) placeGates(count int, rng *rand.Rand) {
	byEdge := map[Edge][]ParkingSpot{}
	for _, s := range l.spots {
		e := l.edgeOf(s)
		byEdge[e] = append(byEdge[e], s)
	}

	type candidate struct {
		edge  Edge
		spots []ParkingSpot
	}
	var candidates []candidate
	for _, e := range []Edge{EdgeTop, EdgeBottom, EdgeLeft, EdgeRight} {
		spots := byEdge[e]
		if len(spots) < GateSpotSpan {
			continue
		}
		sort.Slice(spots, func(i, j int) bool {
			if e == EdgeTop || e == EdgeBottom {
				return spots[i].X1 < spots[j].X1
			}
			return spots[i].Y1 < spots[j].Y1
		})
		candidates = append(candidates, candidate{edge: e, spots: spots})
	}

	count = min(count, len(candidates))
	order := rng.Perm(len(candidates))
	for _, idx := range order[:count] {
		c := candidates[idx]
		start := rng.IntN(len(c.spots) - GateSpotSpan + 1)
		selected := c.spots[start : start+GateSpotSpan]
		first, last := selected[0], selected[len(selected)-1]

		g := GateRegion{Edge: c.edge}
		if c.edge == EdgeTop || c.edge == EdgeBottom {
			g.X1, g.X2, g.Y1, g.Y2 = first.X1, last.X2, first.Y1, first.Y2
		} else {
			g.X1, g.X2, g.Y1, g.Y2 = first.X1, first.X2, first.Y1, last.Y2
		}
		l.gates = append(l.gates, g)
		l.fill(g.X1, g.Y1, g.X2, g.Y2, Gate)
	}

	kept := l.spots[:0]
	for _, s := range l.spots {
		if !l.coveredByGate(s) {
			kept = append(kept, s)
		}
	}
	l.spots = kept
}

func (l *Layout) coveredByGate(s ParkingSpot) bool {
	for _, g := range l.gates {
		if s.X1 >= g.X1 && s.X2 <= g.X2 && s.Y1 >= g.Y1 && s.Y2 <= g.Y2 {
			return true
		}
	}
	return false
}

func (l *Layout) paintSpots() {
	for _, s := range l.spots {
		l.fill(s.X1, s.Y1, s.X2, s.Y2, Spot)
	}
}

func (l *Layout) placeBuildings(count int, rng *rand.Rand) {
	w, h, rw := l.width, l.height, l.roadOffset
	for i := 0; i < count; i++ {
		bx := randInt(rng, rw+5, w-rw-10)
		by := randInt(rng, rw+5, h-rw-10)
		bw := randInt(rng, 3, 6)
		bh := randInt(rng, 3, 6)
		if l.allKind(bx, by, bx+bw, by+bh, Empty) {
			l.fill(bx, by, bx+bw, by+bh, Building)
		}
	}
}

func (l *Layout) allKind(x1, y1, x2, y2 int, kind CellKind) bool {
	for y := y1; y < min(y2, l.height); y++ {
		for x := x1; x < min(x2, l.width); x++ {
			if l.grid[y][x] != kind {
				return false
			}
		}
	}
	return true
}

func (l *Layout) placeChargers(count int, rng *rand.Rand) {
	for i := 0; i < count; i++ {
		var empties []GridPosition
		for y := 0; y < l.height; y++ {
			for x := 0; x < l.width; x++ {
				if l.grid[y][x] == Empty {
					empties = append(empties, GridPosition{X: x, Y: y})
				}
			}
		}
		if len(empties) == 0 {
			return
		}
		p := empties[rng.IntN(len(empties))]
		l.grid[p.Y][p.X] = Charger
		l.stations = append(l.stations, p)
	}
}

// buildInnerLoop returns the clockwise lane: top, right, bottom, left.
func (l *Layout) buildInnerLoop() LaneLoop {
	w, h, rw := l.width, l.height, l.roadOffset
	var loop LaneLoop
	for x := rw + 2; x < w-rw-1; x++ {
		loop = append(loop, GridPosition{X: x, Y: rw + 3})
	}
	for y := rw + 2; y < h-rw-1; y++ {
		loop = append(loop, GridPosition{X: w - rw - 3, Y: y})
	}
	for x := w - rw - 2; x > rw+1; x-- {
		loop = append(loop, GridPosition{X: x, Y: h - rw - 3})
	}
	for y := h - rw - 2; y > rw+1; y-- {
		loop = append(loop, GridPosition{X: rw + 3, Y: y})
	}
	return loop
}

// buildOuterLoop returns the counter-clockwise lane: top (right to left),
// left (top to bottom), bottom (left to right), right (bottom to top).
func (l *Layout) buildOuterLoop() LaneLoop {
	w, h, rw := l.width, l.height, l.roadOffset
	var loop LaneLoop
	for x := w - rw - 2; x > rw+1; x-- {
		loop = append(loop, GridPosition{X: x, Y: rw + 1})
	}
	for y := rw + 2; y < h-rw-1; y++ {
		loop = append(loop, GridPosition{X: rw + 1, Y: y})
	}
	for x := rw + 2; x < w-rw-1; x++ {
		loop = append(loop, GridPosition{X: x, Y: h - rw - 1})
	}
	for y := h - rw - 2; y > rw+1; y-- {
		loop = append(loop, GridPosition{X: w - rw - 1, Y: y})
	}
	return loop
}

// Size returns the grid width and height
func (l *Layout) Size() (int, int) {
	return l.width, l.height
}

// RoadOffset returns the distance between the grid edge and the ring road
func (l *Layout) RoadOffset() int {
	return l.roadOffset
}

// RoadWidth returns the ring road width in cells
func (l *Layout) RoadWidth() int {
	return l.roadWidth
}

// InBounds reports whether the position lies on the grid
func (l *Layout) InBounds(p GridPosition) bool {
	return p.X >= 0 && p.X < l.width && p.Y >= 0 && p.Y < l.height
}

// CellKind returns the kind of the cell; out-of-bounds cells are Empty
func (l *Layout) CellKind(p GridPosition) CellKind {
	if !l.InBounds(p) {
		return Empty
	}
	return l.grid[p.Y][p.X]
}

// Drivable reports whether vehicles may occupy the cell
func (l *Layout) Drivable(p GridPosition) bool {
	k := l.CellKind(p)
	return l.InBounds(p) && (k == Road || k == Gate)
}

// Passable reports whether a robot may cross the cell
func (l *Layout) Passable(p GridPosition) bool {
	return l.InBounds(p) && l.grid[p.Y][p.X] != Building
}

// ParkingSpots returns the parking spots. The slice index is the spot's handle.
func (l *Layout) ParkingSpots() []ParkingSpot {
	return l.spots
}

// Gates returns the gate regions
func (l *Layout) Gates() []GateRegion {
	return l.gates
}

// StationPositions returns the charger cells
func (l *Layout) StationPositions() []GridPosition {
	return l.stations
}

// InnerLoop returns the clockwise lane loop
func (l *Layout) InnerLoop() LaneLoop {
	return l.inner
}

// OuterLoop returns the counter-clockwise lane loop
func (l *Layout) OuterLoop() LaneLoop {
	return l.outer
}

// AdjacentPosition returns the road cell a vehicle stops on to use the spot,
// derived from the grid edge the spot touches.
func (l *Layout) AdjacentPosition(s ParkingSpot) GridPosition {
	cx := (s.X1 + s.X2) / 2
	cy := (s.Y1 + s.Y2) / 2
	switch {
	case s.Y1 == 0:
		return GridPosition{X: cx, Y: s.Y2}
	case s.Y2 == l.height:
		return GridPosition{X: cx, Y: s.Y1 - 1}
	case s.X1 == 0:
		return GridPosition{X: s.X2, Y: cy}
	case s.X2 == l.width:
		return GridPosition{X: s.X1 - 1, Y: cy}
	default:
		return GridPosition{X: cx, Y: cy}
	}
}

// SpawnPosition returns the point on the road centerline nearest the gate
func (l *Layout) SpawnPosition(g GateRegion) GridPosition {
	cx := (g.X1 + g.X2) / 2
	cy := (g.Y1 + g.Y2) / 2
	rw := l.roadOffset
	switch g.Edge {
	case EdgeTop:
		return GridPosition{X: cx, Y: rw + 2}
	case EdgeBottom:
		return GridPosition{X: cx, Y: l.height - rw - 2}
	case EdgeLeft:
		return GridPosition{X: rw + 2, Y: cy}
	case EdgeRight:
		return GridPosition{X: l.width - rw - 2, Y: cy}
	default:
		return GridPosition{X: cx, Y: cy}
	}
}

// RoadSideOf classifies the position against the four ring road bands
func (l *Layout) RoadSideOf(p GridPosition) RoadSide {
	return classifyRoadSide(p, l.width, l.height, l.roadOffset, l.roadWidth)
}

// classifyRoadSide classifies a position against the ring road bands of a w x h grid
func classifyRoadSide(p GridPosition, w, h, offset, width int) RoadSide {
	switch {
	case offset <= p.Y && p.Y < offset+width:
		return SideTop
	case h-offset-width <= p.Y && p.Y < h-offset:
		return SideBottom
	case offset <= p.X && p.X < offset+width:
		return SideLeft
	case w-offset-width <= p.X && p.X < w-offset:
		return SideRight
	default:
		return SideNone
	}
}

var cellChars = map[CellKind]byte{
	Road:     'R',
	Building: 'B',
	Spot:     'P',
	Charger:  'C',
	Gate:     'G',
	Empty:    '.',
}

// Render returns the grid as one string per row
func (l *Layout) Render() []string {
	rows := make([]string, l.height)
	var b strings.Builder
	for y := 0; y < l.height; y++ {
		b.Reset()
		for x := 0; x < l.width; x++ {
			b.WriteByte(cellChars[l.grid[y][x]])
		}
		rows[y] = b.String()
	}
	return rows
}

// CountCellKind counts cells of the given kind
func (l *Layout) CountCellKind(kind CellKind) int {
	count := 0
	for _, row := range l.grid {
		for _, k := range row {
			if k == kind {
				count++
			}
		}
	}
	return count
}

// randInt returns a uniform integer in [lo, hi]
func randInt(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}
