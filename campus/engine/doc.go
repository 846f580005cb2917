// Package engine runs the campus charging simulation.
//
// The engine package implements:
//   - Vehicles that enter through a gate, park, charge and leave along a lane loop
//   - Charging robots that drive to parked vehicles and recharge at stations
//   - The simulation clock that spawns vehicles and schedules robots each tick
//   - Scenario loading and validation
//
// Core Types:
//
// Simulation owns all mutable state: the vehicles, the robot roster and the
// SpotTable that tracks parking spot occupancy. Vehicles and robots receive an
// Env for each update instead of reaching for shared globals. The campus itself
// is read through the Campus interface, implemented by *layout.Layout.
//
// Usage:
//
//	scenario, err := engine.LoadScenario("configs/default.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sim, err := engine.NewFromScenario(scenario, engine.WithLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	report := sim.Tick()
//	snap := sim.Snapshot()
//
// Tick Order:
//
// Each tick increments the clock, spawns vehicles on the spawn interval,
// updates every vehicle and removes those that exited, sends low robots to a
// station, runs the scheduling policy over the remaining eligible robots and
// binds its assignment, and finally updates every robot. A vehicle that parks
// during a tick can therefore be assigned in that same tick.
package engine
