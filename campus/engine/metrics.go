package engine

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/wricardo/campus-charging-sim/campus/engine"

type instruments struct {
	spawned          metric.Int64Counter
	exited           metric.Int64Counter
	activeVehicles   metric.Int64UpDownCounter
	spotMisses       metric.Int64Counter
	assignments      metric.Int64Counter
	stationDispatch  metric.Int64Counter
	chargesCompleted metric.Int64Counter
	energyDelivered  metric.Float64Counter
}

func newInstruments(m metric.Meter) (*instruments, error) {
	if m == nil {
		// Global provider is a no-op unless the process configured one
		m = otel.Meter(instrumentationName)
	}

	var (
		ins instruments
		err error
	)

	if ins.spawned, err = m.Int64Counter("campus.vehicles.spawned",
		metric.WithDescription("Vehicles spawned at gates")); err != nil {
		return nil, fmt.Errorf("creating spawned counter: %w", err)
	}
	if ins.exited, err = m.Int64Counter("campus.vehicles.exited",
		metric.WithDescription("Vehicles that left the campus")); err != nil {
		return nil, fmt.Errorf("creating exited counter: %w", err)
	}
	if ins.activeVehicles, err = m.Int64UpDownCounter("campus.vehicles.active",
		metric.WithDescription("Vehicles currently on campus")); err != nil {
		return nil, fmt.Errorf("creating active vehicles counter: %w", err)
	}
	if ins.spotMisses, err = m.Int64Counter("campus.spots.binding_misses",
		metric.WithDescription("Parked vehicles that found no free spot at their target")); err != nil {
		return nil, fmt.Errorf("creating spot miss counter: %w", err)
	}
	if ins.assignments, err = m.Int64Counter("campus.robots.assignments",
		metric.WithDescription("Robot to vehicle task bindings")); err != nil {
		return nil, fmt.Errorf("creating assignments counter: %w", err)
	}
	if ins.stationDispatch, err = m.Int64Counter("campus.robots.station_dispatches",
		metric.WithDescription("Robots sent to a charging station")); err != nil {
		return nil, fmt.Errorf("creating station dispatch counter: %w", err)
	}
	if ins.chargesCompleted, err = m.Int64Counter("campus.charges.completed",
		metric.WithDescription("Vehicles charged to full")); err != nil {
		return nil, fmt.Errorf("creating charges counter: %w", err)
	}
	if ins.energyDelivered, err = m.Float64Counter("campus.energy.delivered",
		metric.WithDescription("Battery percentage points delivered to vehicles")); err != nil {
		return nil, fmt.Errorf("creating energy counter: %w", err)
	}
	return &ins, nil
}
