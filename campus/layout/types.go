package layout

import "math"

// CellKind represents the static kind of a grid cell
type CellKind string

const (
	Road     CellKind = "road"
	Building CellKind = "building"
	Spot     CellKind = "spot"
	Charger  CellKind = "charger"
	Gate     CellKind = "gate"
	Empty    CellKind = "empty"

	// Geometry constants shared by generation and routing
	DefaultRoadOffset = 4
	DefaultRoadWidth  = 4
	MinGridSize       = 24
	MaxGridSize       = 400
	GateSpotSpan      = 3
)

// GridPosition represents x,y coordinates on the campus grid
type GridPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Distance returns the Euclidean distance between two positions
func (p GridPosition) Distance(o GridPosition) float64 {
	return math.Hypot(float64(p.X-o.X), float64(p.Y-o.Y))
}

// Edge identifies a side of the campus boundary
type Edge string

const (
	EdgeTop    Edge = "top"
	EdgeBottom Edge = "bottom"
	EdgeLeft   Edge = "left"
	EdgeRight  Edge = "right"
)

// RoadSide classifies which side of the ring road a position lies on
type RoadSide string

const (
	SideTop    RoadSide = "top"
	SideBottom RoadSide = "bottom"
	SideLeft   RoadSide = "left"
	SideRight  RoadSide = "right"
	SideNone   RoadSide = "none"
)

// ParkingSpot is an axis-aligned rectangle [X1,X2) x [Y1,Y2).
// Occupancy is not stored here; the engine owns it.
type ParkingSpot struct {
	X1         int  `json:"x1"`
	Y1         int  `json:"y1"`
	X2         int  `json:"x2"`
	Y2         int  `json:"y2"`
	Horizontal bool `json:"horizontal"`
}

// Contains reports whether the cell lies inside the spot
func (s ParkingSpot) Contains(p GridPosition) bool {
	return p.X >= s.X1 && p.X < s.X2 && p.Y >= s.Y1 && p.Y < s.Y2
}

// GateRegion is the rectangle a gate occupies on the boundary
type GateRegion struct {
	X1   int  `json:"x1"`
	Y1   int  `json:"y1"`
	X2   int  `json:"x2"`
	Y2   int  `json:"y2"`
	Edge Edge `json:"edge"`
}

// LaneLoop is one full circuit of a ring lane in traversal order. Indexing wraps.
type LaneLoop []GridPosition

// At returns the waypoint at a modular index
func (l LaneLoop) At(i int) GridPosition {
	n := len(l)
	return l[((i%n)+n)%n]
}
