package engine

import (
	"github.com/rs/zerolog"

	"github.com/wricardo/campus-charging-sim/campus/layout"
	"github.com/wricardo/campus-charging-sim/campus/routing"
)

// VehicleState is a vehicle's lifecycle state
type VehicleState string

const (
	Entering VehicleState = "entering"
	Parked   VehicleState = "parked"
	Exiting  VehicleState = "exiting"
	Exited   VehicleState = "exited"
)

// ChargingStatus is derived from a vehicle's current battery
type ChargingStatus string

const (
	Charging ChargingStatus = "charging"
	Charged  ChargingStatus = "charged"
)

// RobotStatus is a charging robot's lifecycle state
type RobotStatus string

const (
	Idle            RobotStatus = "idle"
	Moving          RobotStatus = "moving"
	ChargingVehicle RobotStatus = "charging_vehicle"
	BeingCharged    RobotStatus = "being_charged"
)

// Orientation is the rendering hint for a vehicle's heading
type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)

const (
	FullBattery            = 100.0
	MinInitialBattery      = 1
	MaxInitialBattery      = 50
	StationChargeIncrement = 5.0

	DefaultRobotBattery     = 100.0
	DefaultRobotMoveSpeed   = 2
	DefaultChargeEfficiency = 0.95
	DefaultRobotThreshold   = 20.0
	DefaultResumeLevel      = 80.0

	DefaultSpawnInterval      = 10
	DefaultMinParkingDuration = 15
	DefaultMaxParkingDuration = 40
)

// Campus is the read-only layout view the engine consumes
type Campus interface {
	Size() (int, int)
	RoadOffset() int
	RoadWidth() int
	CellKind(p layout.GridPosition) layout.CellKind
	Passable(p layout.GridPosition) bool
	ParkingSpots() []layout.ParkingSpot
	Gates() []layout.GateRegion
	StationPositions() []layout.GridPosition
	InnerLoop() layout.LaneLoop
	OuterLoop() layout.LaneLoop
	AdjacentPosition(s layout.ParkingSpot) layout.GridPosition
	SpawnPosition(g layout.GateRegion) layout.GridPosition
	RoadSideOf(p layout.GridPosition) layout.RoadSide
}

// Env is the simulation context handed to every entity constructor and update.
// Entities never hold on to it between calls.
type Env struct {
	Campus Campus
	Spots  *SpotTable
	Lanes  routing.LaneRouter
	Tick   int
	Log    zerolog.Logger
}

// loop returns the lane loop for a travel direction
func (e *Env) loop(clockwise bool) layout.LaneLoop {
	if clockwise {
		return e.Campus.InnerLoop()
	}
	return e.Campus.OuterLoop()
}

// VehicleEvent reports the transition a vehicle made during one update
type VehicleEvent string

const (
	VehicleNoEvent  VehicleEvent = ""
	VehicleParked   VehicleEvent = "parked"
	VehicleSpotMiss VehicleEvent = "spot_miss"
	VehicleExiting  VehicleEvent = "exiting"
	VehicleExited   VehicleEvent = "exited"
)

// RobotEvent reports the transition a robot made during one update
type RobotEvent string

const (
	RobotNoEvent        RobotEvent = ""
	RobotArrived        RobotEvent = "arrived"
	RobotChargeComplete RobotEvent = "charge_complete"
	RobotTaskDropped    RobotEvent = "task_dropped"
	RobotRecharged      RobotEvent = "recharged"
)

// RobotStep is the outcome of one robot update
type RobotStep struct {
	Event     RobotEvent `json:"event,omitempty"`
	Delivered float64    `json:"delivered,omitempty"`
	Drawn     float64    `json:"drawn,omitempty"`
}
