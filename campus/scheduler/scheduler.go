// Package scheduler assigns charging robots to vehicles that need charge.
//
// Policies are pure functions over value snapshots of robots and vehicles.
// They never mutate their inputs; the caller binds each returned pair.
// Every policy returns a one-to-one assignment no larger than
// min(eligible robots, vehicles).
package scheduler

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/wricardo/campus-charging-sim/campus/layout"
)

const (
	NearestTaskFirstName = "nearest_task_first"
	MaxDemandFirstName   = "max_demand_first"
)

var ErrUnknownPolicy = errors.New("unknown scheduling policy")

// Candidate is a robot as seen by a policy
type Candidate struct {
	ID       int
	Position layout.GridPosition
	Status   string
}

// Demand is a charge-needing vehicle as seen by a policy
type Demand struct {
	ID             int
	Position       layout.GridPosition
	CurrentBattery float64
	TargetBattery  float64
}

// Need returns how far the vehicle is below its target battery
func (d Demand) Need() float64 {
	return d.TargetBattery - d.CurrentBattery
}

// StatusSet lists the robot statuses eligible for a new task
type StatusSet map[string]bool

// NewStatusSet builds a StatusSet from status names
func NewStatusSet(statuses ...string) StatusSet {
	s := make(StatusSet, len(statuses))
	for _, st := range statuses {
		s[st] = true
	}
	return s
}

// Pair binds one robot to one vehicle
type Pair struct {
	RobotID   int `json:"robot_id"`
	VehicleID int `json:"vehicle_id"`
}

// Assignment is the per-tick task mapping, in robot input order
type Assignment []Pair

// VehicleFor returns the vehicle assigned to the robot
func (a Assignment) VehicleFor(robotID int) (int, bool) {
	for _, p := range a {
		if p.RobotID == robotID {
			return p.VehicleID, true
		}
	}
	return 0, false
}

// Policy maps eligible robots and charge-needing vehicles to an assignment
type Policy func(robots []Candidate, vehicles []Demand, available StatusSet) Assignment

// ByName resolves a policy from its configuration name
func ByName(name string) (Policy, error) {
	switch name {
	case NearestTaskFirstName, "":
		return NearestTaskFirst, nil
	case MaxDemandFirstName:
		return MaxDemandFirst, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// NearestTaskFirst gives each eligible robot, in input order, the closest vehicle
// still unassigned. Distance ties go to the earlier vehicle.
func NearestTaskFirst(robots []Candidate, vehicles []Demand, available StatusSet) Assignment {
	pool := append([]Demand(nil), vehicles...)
	var out Assignment

	for _, r := range robots {
		if !available[r.Status] || len(pool) == 0 {
			continue
		}
		best := -1
		bestDist := math.Inf(1)
		for i, v := range pool {
			if d := r.Position.Distance(v.Position); d < bestDist {
				best, bestDist = i, d
			}
		}
		out = append(out, Pair{RobotID: r.ID, VehicleID: pool[best].ID})
		pool = append(pool[:best], pool[best+1:]...)
	}
	return out
}

// MaxDemandFirst sorts vehicles once by descending need and hands them out
// to eligible robots in input order.
func MaxDemandFirst(robots []Candidate, vehicles []Demand, available StatusSet) Assignment {
	pool := append([]Demand(nil), vehicles...)
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Need() > pool[j].Need()
	})
	var out Assignment

	for _, r := range robots {
		if !available[r.Status] || len(pool) == 0 {
			continue
		}
		out = append(out, Pair{RobotID: r.ID, VehicleID: pool[0].ID})
		pool = pool[1:]
	}
	return out
}
