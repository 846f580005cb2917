package engine

import (
	"errors"
	"fmt"

	"github.com/wricardo/campus-charging-sim/campus/layout"
	"github.com/wricardo/campus-charging-sim/campus/routing"
)

var ErrInvalidBattery = errors.New("invalid vehicle battery")

// VehicleSpec describes a vehicle at spawn time
type VehicleSpec struct {
	ID              int
	Gate            layout.GateRegion
	Target          layout.GridPosition
	ParkingDuration int
	SpawnTick       int
	Clockwise       bool
	InitialBattery  float64
	TargetBattery   float64
}

// Vehicle is an electric vehicle that enters through a gate, parks, charges and leaves
type Vehicle struct {
	id              int
	gate            layout.GateRegion
	target          layout.GridPosition
	parkingDuration int
	spawnTick       int
	clockwise       bool

	state        VehicleState
	position     layout.GridPosition
	route        []layout.GridPosition
	orientation  Orientation
	spot         SpotHandle
	parkedAtTick int

	initialBattery float64
	targetBattery  float64
	currentBattery float64
}

// NewVehicle places a vehicle on its lane at the gate and routes it to its target
func NewVehicle(env *Env, spec VehicleSpec) (*Vehicle, error) {
	if spec.InitialBattery < 0 || spec.InitialBattery > spec.TargetBattery || spec.TargetBattery > FullBattery {
		return nil, fmt.Errorf("%w: initial %.1f target %.1f", ErrInvalidBattery, spec.InitialBattery, spec.TargetBattery)
	}

	v := &Vehicle{
		id:              spec.ID,
		gate:            spec.Gate,
		target:          spec.Target,
		parkingDuration: spec.ParkingDuration,
		spawnTick:       spec.SpawnTick,
		clockwise:       spec.Clockwise,
		state:           Entering,
		spot:            NoSpot,
		orientation:     Horizontal,
		initialBattery:  spec.InitialBattery,
		targetBattery:   spec.TargetBattery,
		currentBattery:  spec.InitialBattery,
	}

	loop := env.loop(spec.Clockwise)
	idx, err := routing.Snap(loop, env.Campus.SpawnPosition(spec.Gate))
	if err != nil {
		return nil, fmt.Errorf("vehicle %d: %w", spec.ID, err)
	}
	v.position = loop[idx]

	route, err := env.Lanes.Route(loop, v.position, spec.Target)
	if err != nil {
		return nil, fmt.Errorf("vehicle %d: %w", spec.ID, err)
	}
	v.route = route
	v.updateOrientation()
	return v, nil
}

// Update advances the vehicle by one tick
func (v *Vehicle) Update(env *Env) VehicleEvent {
	event := VehicleNoEvent

	switch v.state {
	case Entering:
		if len(v.route) > 0 {
			v.advance()
			break
		}
		v.state = Parked
		v.parkedAtTick = env.Tick
		event = v.bindSpot(env)

	case Parked:
		if env.Tick-v.parkedAtTick < v.parkingDuration {
			break
		}
		route, err := env.Lanes.Route(env.loop(v.clockwise), v.position, env.Campus.SpawnPosition(v.gate))
		if err != nil {
			env.Log.Error().Err(err).Int("vehicle", v.id).Msg("Failed to route vehicle to exit")
			break
		}
		v.route = route
		v.state = Exiting
		event = VehicleExiting

	case Exiting:
		if len(v.route) > 0 {
			v.advance()
			break
		}
		v.state = Exited
		v.releaseSpot(env)
		event = VehicleExited
	}

	if (v.state == Entering || v.state == Exiting) && len(v.route) > 0 {
		v.updateOrientation()
	}
	return event
}

func (v *Vehicle) advance() {
	v.position = v.route[0]
	v.route = v.route[1:]
}

// bindSpot claims the first free spot whose adjacent position is the target
func (v *Vehicle) bindSpot(env *Env) VehicleEvent {
	h := env.Spots.FindUnoccupied(func(s layout.ParkingSpot) bool {
		return env.Campus.AdjacentPosition(s) == v.target
	})
	if h == NoSpot {
		env.Log.Warn().Int("vehicle", v.id).Interface("target", v.target).Msg("No free parking spot at target")
		return VehicleSpotMiss
	}
	if err := env.Spots.Acquire(h, v.id); err != nil {
		env.Log.Warn().Err(err).Int("vehicle", v.id).Msg("Failed to acquire parking spot")
		return VehicleSpotMiss
	}
	v.spot = h
	return VehicleParked
}

func (v *Vehicle) releaseSpot(env *Env) {
	if v.spot == NoSpot {
		return
	}
	if err := env.Spots.Release(v.spot, v.id); err != nil {
		env.Log.Error().Err(err).Int("vehicle", v.id).Msg("Failed to release parking spot")
	}
	v.spot = NoSpot
}

func (v *Vehicle) updateOrientation() {
	if len(v.route) == 0 {
		return
	}
	if v.route[0].X != v.position.X {
		v.orientation = Horizontal
	} else {
		v.orientation = Vertical
	}
}

// ChargingSpeed is the per-tick charge rate, decreasing as the battery fills
func (v *Vehicle) ChargingSpeed() float64 {
	return 100 - 0.5*v.currentBattery
}

// Charge applies one tick of charge and returns the amount added
func (v *Vehicle) Charge() float64 {
	before := v.currentBattery
	v.currentBattery = min(v.currentBattery+v.ChargingSpeed(), FullBattery)
	return v.currentBattery - before
}

// ChargingStatus derives the charge state from the current battery
func (v *Vehicle) ChargingStatus() ChargingStatus {
	if v.currentBattery >= FullBattery {
		return Charged
	}
	return Charging
}

// NeedsCharge reports whether the vehicle is parked below its target battery
func (v *Vehicle) NeedsCharge() bool {
	return v.state == Parked && v.currentBattery < v.targetBattery
}

func (v *Vehicle) ID() int { return v.id }
func (v *Vehicle) State() VehicleState { return v.state }
func (v *Vehicle) Position() layout.GridPosition { return v.position }
func (v *Vehicle) Target() layout.GridPosition { return v.target }
func (v *Vehicle) Gate() layout.GateRegion { return v.gate }
func (v *Vehicle) Orientation() Orientation { return v.orientation }
func (v *Vehicle) Spot() SpotHandle { return v.spot }
func (v *Vehicle) Clockwise() bool { return v.clockwise }
func (v *Vehicle) SpawnTick() int { return v.spawnTick }
func (v *Vehicle) ParkedAtTick() int { return v.parkedAtTick }
func (v *Vehicle) ParkingDuration() int { return v.parkingDuration }
func (v *Vehicle) InitialBattery() float64 { return v.initialBattery }
func (v *Vehicle) TargetBattery() float64 { return v.targetBattery }
func (v *Vehicle) CurrentBattery() float64 { return v.currentBattery }
func (v *Vehicle) RemainingRoute() int { return len(v.route) }

// Route returns a copy of the remaining waypoints
func (v *Vehicle) Route() []layout.GridPosition {
	return append([]layout.GridPosition(nil), v.route...)
}
