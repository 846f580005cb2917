package engine

import "github.com/wricardo/campus-charging-sim/campus/layout"

// VehicleView is the renderer's view of a vehicle
type VehicleView struct {
	ID             int                 `json:"id"`
	State          VehicleState        `json:"state"`
	Position       layout.GridPosition `json:"position"`
	Orientation    Orientation         `json:"orientation"`
	RoadSide       layout.RoadSide     `json:"road_side"`
	Clockwise      bool                `json:"clockwise"`
	CurrentBattery float64             `json:"current_battery"`
	TargetBattery  float64             `json:"target_battery"`
	ChargingStatus ChargingStatus      `json:"charging_status"`
	Spot           int                 `json:"spot"`
	ParkedAtTick   int                 `json:"parked_at_tick,omitempty"`
	RemainingRoute int                 `json:"remaining_route"`
}

// RobotView is the renderer's view of a charging robot
type RobotView struct {
	ID             int                  `json:"id"`
	Status         RobotStatus          `json:"status"`
	Position       layout.GridPosition  `json:"position"`
	Battery        float64              `json:"battery"`
	MaxBattery     float64              `json:"max_battery"`
	TargetVehicle  int                  `json:"target_vehicle,omitempty"`
	TargetStation  *layout.GridPosition `json:"target_station,omitempty"`
	RemainingRoute int                  `json:"remaining_route"`
}

// SpotView is one parking spot with its occupancy
type SpotView struct {
	Handle    int                `json:"handle"`
	Spot      layout.ParkingSpot `json:"spot"`
	Occupied  bool               `json:"occupied"`
	VehicleID int                `json:"vehicle_id,omitempty"`
}

// Snapshot is a read-only copy of the simulation state at the current tick
type Snapshot struct {
	Tick     int           `json:"tick"`
	Vehicles []VehicleView `json:"vehicles"`
	Robots   []RobotView   `json:"robots"`
	Spots    []SpotView    `json:"spots"`
	Stats    Stats         `json:"stats"`
}

// Snapshot copies the current state for rendering
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:     s.tick,
		Vehicles: make([]VehicleView, 0, len(s.vehicles)),
		Robots:   make([]RobotView, 0, len(s.robots)),
		Spots:    make([]SpotView, 0, s.spots.Len()),
		Stats:    s.stats,
	}

	for _, v := range s.vehicles {
		snap.Vehicles = append(snap.Vehicles, VehicleView{
			ID:             v.ID(),
			State:          v.State(),
			Position:       v.Position(),
			Orientation:    v.Orientation(),
			RoadSide:       s.campus.RoadSideOf(v.Position()),
			Clockwise:      v.Clockwise(),
			CurrentBattery: v.CurrentBattery(),
			TargetBattery:  v.TargetBattery(),
			ChargingStatus: v.ChargingStatus(),
			Spot:           int(v.Spot()),
			ParkedAtTick:   v.ParkedAtTick(),
			RemainingRoute: v.RemainingRoute(),
		})
	}

	for _, r := range s.robots {
		view := RobotView{
			ID:             r.ID(),
			Status:         r.Status(),
			Position:       r.Position(),
			Battery:        r.Battery(),
			MaxBattery:     r.MaxBattery(),
			RemainingRoute: r.RemainingRoute(),
		}
		if v := r.TargetVehicle(); v != nil {
			view.TargetVehicle = v.ID()
		}
		if st, ok := r.TargetStation(); ok {
			view.TargetStation = &st
		}
		snap.Robots = append(snap.Robots, view)
	}

	for i := 0; i < s.spots.Len(); i++ {
		h := SpotHandle(i)
		holder, occupied := s.spots.Holder(h)
		snap.Spots = append(snap.Spots, SpotView{
			Handle:    i,
			Spot:      s.spots.Spot(h),
			Occupied:  occupied,
			VehicleID: holder,
		})
	}
	return snap
}
