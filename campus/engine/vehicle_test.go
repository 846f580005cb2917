package engine

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wricardo/campus-charging-sim/campus/layout"
	"github.com/wricardo/campus-charging-sim/campus/routing"
)

// fakeCampus is a 10x10 campus with a single straight lane along y=0.
// A spot's adjacent road cell is directly above it on the lane.
type fakeCampus struct {
	loop     layout.LaneLoop
	spots    []layout.ParkingSpot
	gates    []layout.GateRegion
	stations []layout.GridPosition
}

func newFakeCampus() *fakeCampus {
	loop := make(layout.LaneLoop, 10)
	for i := range loop {
		loop[i] = layout.GridPosition{X: i, Y: 0}
	}
	return &fakeCampus{
		loop:     loop,
		spots:    []layout.ParkingSpot{{X1: 2, Y1: 1, X2: 3, Y2: 2}, {X1: 5, Y1: 1, X2: 6, Y2: 2}},
		gates:    []layout.GateRegion{{X1: 0, Y1: 1, X2: 1, Y2: 2, Edge: layout.EdgeLeft}},
		stations: []layout.GridPosition{{X: 9, Y: 9}},
	}
}

func (c *fakeCampus) Size() (int, int) { return 10, 10 }
func (c *fakeCampus) RoadOffset() int { return 0 }
func (c *fakeCampus) RoadWidth() int { return 1 }
func (c *fakeCampus) CellKind(p layout.GridPosition) layout.CellKind { return layout.Road }
func (c *fakeCampus) Passable(p layout.GridPosition) bool { return true }
func (c *fakeCampus) ParkingSpots() []layout.ParkingSpot { return c.spots }
func (c *fakeCampus) Gates() []layout.GateRegion { return c.gates }
func (c *fakeCampus) StationPositions() []layout.GridPosition { return c.stations }
func (c *fakeCampus) InnerLoop() layout.LaneLoop { return c.loop }
func (c *fakeCampus) OuterLoop() layout.LaneLoop { return c.loop }

func (c *fakeCampus) AdjacentPosition(s layout.ParkingSpot) layout.GridPosition {
	return layout.GridPosition{X: s.X1, Y: 0}
}

func (c *fakeCampus) SpawnPosition(g layout.GateRegion) layout.GridPosition {
	return layout.GridPosition{X: 0, Y: 0}
}

// RoadSideOf treats the grid border as the ring road
func (c *fakeCampus) RoadSideOf(p layout.GridPosition) layout.RoadSide {
	switch {
	case p.Y == 0:
		return layout.SideTop
	case p.Y == 9:
		return layout.SideBottom
	case p.X == 0:
		return layout.SideLeft
	case p.X == 9:
		return layout.SideRight
	default:
		return layout.SideNone
	}
}

func newTestEnv(campus Campus) *Env {
	return &Env{
		Campus: campus,
		Spots:  NewSpotTable(campus.ParkingSpots()),
		Lanes:  routing.LoopRouter{},
		Log:    zerolog.Nop(),
	}
}

func testVehicleSpec(id int, target layout.GridPosition, initial, goal float64) VehicleSpec {
	return VehicleSpec{
		ID:              id,
		Target:          target,
		ParkingDuration: 3,
		Clockwise:       true,
		InitialBattery:  initial,
		TargetBattery:   goal,
	}
}

// step advances env time and updates the vehicle once
func step(env *Env, v *Vehicle) VehicleEvent {
	env.Tick++
	return v.Update(env)
}

// parkVehicle creates a vehicle and drives it until it parks
func parkVehicle(t *testing.T, env *Env, id int, target layout.GridPosition, initial float64) *Vehicle {
	t.Helper()
	v, err := NewVehicle(env, testVehicleSpec(id, target, initial, 100))
	if err != nil {
		t.Fatalf("Failed to create vehicle: %v", err)
	}
	for i := 0; i < 50 && v.State() == Entering; i++ {
		step(env, v)
	}
	if v.State() != Parked {
		t.Fatalf("Expected vehicle to park, got state %s", v.State())
	}
	return v
}

func TestNewVehicle_InvalidBattery(t *testing.T) {
	env := newTestEnv(newFakeCampus())
	tests := []struct {
		name            string
		initial, target float64
	}{
		{"initial above target", 60, 50},
		{"target above full", 10, 120},
		{"negative initial", -1, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVehicle(env, testVehicleSpec(1, layout.GridPosition{X: 5}, tt.initial, tt.target))
			if !errors.Is(err, ErrInvalidBattery) {
				t.Errorf("Expected ErrInvalidBattery, got %v", err)
			}
		})
	}
}

func TestNewVehicle_EmptyLoop(t *testing.T) {
	campus := newFakeCampus()
	campus.loop = nil
	_, err := NewVehicle(newTestEnv(campus), testVehicleSpec(1, layout.GridPosition{X: 5}, 10, 50))
	if !errors.Is(err, routing.ErrEmptyLoop) {
		t.Errorf("Expected ErrEmptyLoop, got %v", err)
	}
}

func TestVehicle_Lifecycle(t *testing.T) {
	env := newTestEnv(newFakeCampus())
	v, err := NewVehicle(env, testVehicleSpec(1, layout.GridPosition{X: 5}, 10, 80))
	if err != nil {
		t.Fatalf("Failed to create vehicle: %v", err)
	}

	if v.State() != Entering {
		t.Errorf("Expected state entering, got %s", v.State())
	}
	if v.Position() != (layout.GridPosition{X: 0, Y: 0}) {
		t.Errorf("Expected spawn at (0,0), got %+v", v.Position())
	}
	// Route starts at the current position and ends at the target
	if v.RemainingRoute() != 6 {
		t.Errorf("Expected 6 waypoints, got %d", v.RemainingRoute())
	}

	for i := 0; i < 6; i++ {
		if ev := step(env, v); ev != VehicleNoEvent {
			t.Errorf("Tick %d: expected no event while entering, got %s", env.Tick, ev)
		}
	}
	if v.Position() != (layout.GridPosition{X: 5, Y: 0}) {
		t.Errorf("Expected vehicle at target, got %+v", v.Position())
	}
	if v.Orientation() != Horizontal {
		t.Errorf("Expected horizontal orientation, got %s", v.Orientation())
	}

	if ev := step(env, v); ev != VehicleParked {
		t.Fatalf("Expected parked event, got %s", ev)
	}
	if v.ParkedAtTick() != 7 {
		t.Errorf("Expected parked at tick 7, got %d", v.ParkedAtTick())
	}
	if v.Spot() != 1 || !env.Spots.Occupied(1) {
		t.Errorf("Expected spot 1 to be bound and occupied, got %d", v.Spot())
	}
	if !v.NeedsCharge() {
		t.Error("Expected parked vehicle below target to need charge")
	}

	// Stays parked for the parking duration
	step(env, v)
	step(env, v)
	if v.State() != Parked {
		t.Errorf("Expected still parked at tick %d, got %s", env.Tick, v.State())
	}
	if ev := step(env, v); ev != VehicleExiting {
		t.Fatalf("Expected exiting event at tick %d, got %s", env.Tick, ev)
	}
	if !env.Spots.Occupied(1) {
		t.Error("Expected spot to stay occupied while exiting")
	}

	for i := 0; i < 6; i++ {
		step(env, v)
	}
	if v.Position() != (layout.GridPosition{X: 0, Y: 0}) {
		t.Errorf("Expected vehicle back at spawn, got %+v", v.Position())
	}
	if ev := step(env, v); ev != VehicleExited {
		t.Fatalf("Expected exited event, got %s", ev)
	}
	if env.Spots.Occupied(1) {
		t.Error("Expected spot released after exit")
	}
	if v.Spot() != NoSpot {
		t.Errorf("Expected no spot after exit, got %d", v.Spot())
	}

	// Terminal
	if ev := step(env, v); ev != VehicleNoEvent || v.State() != Exited {
		t.Errorf("Expected exited to be terminal, got %s/%s", ev, v.State())
	}
}

func TestVehicle_SpotBindingMiss(t *testing.T) {
	env := newTestEnv(newFakeCampus())
	target := layout.GridPosition{X: 2}
	first := parkVehicle(t, env, 1, target, 10)
	if first.Spot() != 0 {
		t.Fatalf("Expected first vehicle on spot 0, got %d", first.Spot())
	}

	second, err := NewVehicle(env, testVehicleSpec(2, target, 10, 50))
	if err != nil {
		t.Fatalf("Failed to create vehicle: %v", err)
	}
	var sawMiss bool
	for i := 0; i < 10 && second.State() == Entering; i++ {
		if step(env, second) == VehicleSpotMiss {
			sawMiss = true
		}
	}
	if !sawMiss {
		t.Error("Expected a spot binding miss")
	}
	if second.State() != Parked || second.Spot() != NoSpot {
		t.Errorf("Expected parked without spot, got %s spot %d", second.State(), second.Spot())
	}

	// Leaving without a spot must not free the other vehicle's spot
	for i := 0; i < 20 && second.State() != Exited; i++ {
		step(env, second)
	}
	if second.State() != Exited {
		t.Fatalf("Expected second vehicle to exit, got %s", second.State())
	}
	if holder, ok := env.Spots.Holder(0); !ok || holder != 1 {
		t.Errorf("Expected spot 0 still held by vehicle 1, got %d %v", holder, ok)
	}
}

func TestVehicle_VerticalOrientation(t *testing.T) {
	campus := newFakeCampus()
	campus.loop = layout.LaneLoop{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: 2}, {X: 0, Y: 3}}
	env := newTestEnv(campus)

	v, err := NewVehicle(env, testVehicleSpec(1, layout.GridPosition{X: 0, Y: 3}, 10, 50))
	if err != nil {
		t.Fatalf("Failed to create vehicle: %v", err)
	}
	step(env, v)
	step(env, v)
	if v.Orientation() != Vertical {
		t.Errorf("Expected vertical orientation, got %s", v.Orientation())
	}
}

func TestVehicle_Charging(t *testing.T) {
	env := newTestEnv(newFakeCampus())

	v := parkVehicle(t, env, 1, layout.GridPosition{X: 5}, 10)
	if v.ChargingSpeed() != 95 {
		t.Errorf("Expected charging speed 95, got %.2f", v.ChargingSpeed())
	}
	if v.ChargingStatus() != Charging {
		t.Errorf("Expected charging status, got %s", v.ChargingStatus())
	}

	added := v.Charge()
	if v.CurrentBattery() != 100 {
		t.Errorf("Expected battery capped at 100, got %.2f", v.CurrentBattery())
	}
	if added != 90 {
		t.Errorf("Expected 90 added, got %.2f", added)
	}
	if v.ChargingStatus() != Charged {
		t.Errorf("Expected charged status, got %s", v.ChargingStatus())
	}
	if v.NeedsCharge() {
		t.Error("Expected charged vehicle not to need charge")
	}
}

func TestVehicle_ChargingSpeedDecreases(t *testing.T) {
	tests := []struct {
		battery  float64
		expected float64
	}{
		{0, 100},
		{20, 90},
		{50, 75},
		{99, 50.5},
	}

	for _, tt := range tests {
		v := &Vehicle{currentBattery: tt.battery}
		if got := v.ChargingSpeed(); got != tt.expected {
			t.Errorf("Battery %.0f: expected speed %.1f, got %.1f", tt.battery, tt.expected, got)
		}
	}
}

func TestSpotTable(t *testing.T) {
	table := NewSpotTable([]layout.ParkingSpot{{X1: 0, X2: 1}, {X1: 1, X2: 2}})

	if err := table.Acquire(0, 7); err != nil {
		t.Fatalf("Failed to acquire: %v", err)
	}
	if err := table.Acquire(0, 8); !errors.Is(err, ErrSpotOccupied) {
		t.Errorf("Expected ErrSpotOccupied, got %v", err)
	}
	if err := table.Release(0, 8); !errors.Is(err, ErrSpotNotHeld) {
		t.Errorf("Expected ErrSpotNotHeld, got %v", err)
	}
	if err := table.Acquire(5, 8); !errors.Is(err, ErrInvalidSpot) {
		t.Errorf("Expected ErrInvalidSpot, got %v", err)
	}

	if free := table.Unoccupied(); len(free) != 1 || free[0] != 1 {
		t.Errorf("Expected only spot 1 free, got %v", free)
	}
	if table.OccupiedCount() != 1 {
		t.Errorf("Expected 1 occupied, got %d", table.OccupiedCount())
	}

	if err := table.Release(0, 7); err != nil {
		t.Errorf("Failed to release: %v", err)
	}
	if table.Occupied(0) {
		t.Error("Expected spot 0 free after release")
	}
	if table.Occupied(NoSpot) {
		t.Error("Expected NoSpot never occupied")
	}

	table.Acquire(1, 3)
	table.Reset()
	if table.OccupiedCount() != 0 {
		t.Errorf("Expected reset table empty, got %d", table.OccupiedCount())
	}
}
