package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/wricardo/campus-charging-sim/campus/layout"
	"github.com/wricardo/campus-charging-sim/campus/routing"
)

var (
	ErrRobotBusy    = errors.New("robot already bound to a vehicle")
	ErrNilVehicle   = errors.New("vehicle is nil")
	ErrInvalidRobot = errors.New("invalid robot")
)

// RobotSpec describes a charging robot at construction time
type RobotSpec struct {
	ID                  int
	Position            layout.GridPosition
	HomeStation         layout.GridPosition
	Battery             float64
	MaxBattery          float64
	MoveSpeed           int
	ChargeEfficiency    float64
	MinBatteryThreshold float64
}

// DefaultRobotSpec returns a full robot at the given position and home station
func DefaultRobotSpec(id int, position, home layout.GridPosition) RobotSpec {
	return RobotSpec{
		ID:                  id,
		Position:            position,
		HomeStation:         home,
		Battery:             DefaultRobotBattery,
		MaxBattery:          DefaultRobotBattery,
		MoveSpeed:           DefaultRobotMoveSpeed,
		ChargeEfficiency:    DefaultChargeEfficiency,
		MinBatteryThreshold: DefaultRobotThreshold,
	}
}

// EnergyDrawn is the robot battery consumed to deliver chargeRate to a vehicle
func EnergyDrawn(chargeRate, efficiency float64) float64 {
	return chargeRate / efficiency
}

// ChargingRobot drives to parked vehicles and transfers energy to them
type ChargingRobot struct {
	id         int
	position   layout.GridPosition
	battery    float64
	maxBattery float64
	moveSpeed  int
	efficiency float64
	threshold  float64
	stations   []layout.GridPosition

	status        RobotStatus
	route         []layout.GridPosition
	targetVehicle *Vehicle
	targetStation *layout.GridPosition

	router routing.FreeRouter
}

// NewChargingRobot creates an idle robot. The home station is listed first
// among the stations it can recharge at.
func NewChargingRobot(spec RobotSpec, stations []layout.GridPosition, router routing.FreeRouter) (*ChargingRobot, error) {
	if spec.MaxBattery <= 0 || spec.Battery < 0 || spec.Battery > spec.MaxBattery {
		return nil, fmt.Errorf("%w %d: battery %.1f of %.1f", ErrInvalidRobot, spec.ID, spec.Battery, spec.MaxBattery)
	}
	if spec.ChargeEfficiency <= 0 || spec.ChargeEfficiency > 1 {
		return nil, fmt.Errorf("%w %d: charge efficiency %.2f", ErrInvalidRobot, spec.ID, spec.ChargeEfficiency)
	}
	if router == nil {
		router = routing.ManhattanRouter{}
	}

	all := make([]layout.GridPosition, 0, len(stations)+1)
	all = append(all, spec.HomeStation)
	all = append(all, stations...)

	return &ChargingRobot{
		id:         spec.ID,
		position:   spec.Position,
		battery:    spec.Battery,
		maxBattery: spec.MaxBattery,
		moveSpeed:  spec.MoveSpeed,
		efficiency: spec.ChargeEfficiency,
		threshold:  spec.MinBatteryThreshold,
		stations:   all,
		status:     Idle,
		router:     router,
	}, nil
}

// BindTargetVehicle routes the robot to a vehicle and abandons any station trip
func (r *ChargingRobot) BindTargetVehicle(v *Vehicle) error {
	if v == nil {
		return ErrNilVehicle
	}
	if r.targetVehicle != nil {
		return fmt.Errorf("%w: robot %d has vehicle %d", ErrRobotBusy, r.id, r.targetVehicle.ID())
	}
	r.targetStation = nil
	r.targetVehicle = v
	r.route = r.router.Route(r.position, v.Position())
	if len(r.route) == 0 {
		r.status = ChargingVehicle
	} else {
		r.status = Moving
	}
	return nil
}

// BindTargetStation routes the robot to a charging station
func (r *ChargingRobot) BindTargetStation(p layout.GridPosition) error {
	if r.targetVehicle != nil {
		return fmt.Errorf("%w: robot %d has vehicle %d", ErrRobotBusy, r.id, r.targetVehicle.ID())
	}
	station := p
	r.targetStation = &station
	r.route = r.router.Route(r.position, p)
	if len(r.route) == 0 {
		r.status = BeingCharged
	} else {
		r.status = Moving
	}
	return nil
}

// Update advances the robot by one tick
func (r *ChargingRobot) Update() RobotStep {
	switch r.status {
	case Moving:
		if len(r.route) > 0 {
			r.position = r.route[0]
			r.route = r.route[1:]
		}
		if len(r.route) > 0 {
			return RobotStep{}
		}
		switch {
		case r.targetVehicle != nil:
			r.status = ChargingVehicle
		case r.targetStation != nil:
			r.status = BeingCharged
		default:
			r.status = Idle
		}
		return RobotStep{Event: RobotArrived}

	case ChargingVehicle:
		return r.chargeVehicle()

	case BeingCharged:
		r.battery = min(r.battery+StationChargeIncrement, r.maxBattery)
		if r.battery >= r.maxBattery {
			r.targetStation = nil
			r.status = Idle
			return RobotStep{Event: RobotRecharged}
		}
	}
	return RobotStep{}
}

func (r *ChargingRobot) chargeVehicle() RobotStep {
	v := r.targetVehicle
	if v == nil || v.State() != Parked || r.battery <= 0 {
		r.clearTask()
		return RobotStep{Event: RobotTaskDropped}
	}

	rate := v.ChargingSpeed()
	delivered := v.Charge()
	drawn := EnergyDrawn(rate, r.efficiency)
	r.battery = math.Max(r.battery-drawn, 0)

	step := RobotStep{Delivered: delivered, Drawn: drawn}
	if v.ChargingStatus() == Charged {
		r.clearTask()
		step.Event = RobotChargeComplete
	}
	return step
}

func (r *ChargingRobot) clearTask() {
	r.targetVehicle = nil
	r.route = nil
	r.status = Idle
}

// NeedsRecharge reports whether the battery is at or below the threshold
func (r *ChargingRobot) NeedsRecharge() bool {
	return r.battery <= r.threshold
}

// NearestStation returns the closest known station, ties going to the home station
func (r *ChargingRobot) NearestStation() (layout.GridPosition, bool) {
	if len(r.stations) == 0 {
		return layout.GridPosition{}, false
	}
	best := r.stations[0]
	bestDist := r.position.Distance(best)
	for _, s := range r.stations[1:] {
		if d := r.position.Distance(s); d < bestDist {
			best, bestDist = s, d
		}
	}
	return best, true
}

func (r *ChargingRobot) ID() int { return r.id }
func (r *ChargingRobot) Status() RobotStatus { return r.status }
func (r *ChargingRobot) Position() layout.GridPosition { return r.position }
func (r *ChargingRobot) Battery() float64 { return r.battery }
func (r *ChargingRobot) MaxBattery() float64 { return r.maxBattery }
func (r *ChargingRobot) MoveSpeed() int { return r.moveSpeed }
func (r *ChargingRobot) MinBatteryThreshold() float64 { return r.threshold }
func (r *ChargingRobot) TargetVehicle() *Vehicle { return r.targetVehicle }
func (r *ChargingRobot) RemainingRoute() int { return len(r.route) }

// TargetStation returns the station the robot is heading to or charging at
func (r *ChargingRobot) TargetStation() (layout.GridPosition, bool) {
	if r.targetStation == nil {
		return layout.GridPosition{}, false
	}
	return *r.targetStation, true
}
