package service

import (
	"context"
	"time"

	"github.com/wricardo/campus-charging-sim/campus/engine"
)

// SimulationService defines all simulation-related operations
type SimulationService interface {
	// Run Management
	CreateSimulation(ctx context.Context, scenarioID string) (*RunInfo, error)
	GetSimulation(ctx context.Context, runID string) (*RunInfo, error)
	ListSimulations(ctx context.Context) ([]*RunInfo, error)
	DeleteSimulation(ctx context.Context, runID string) error

	// Clock
	Step(ctx context.Context, runID string, ticks int) (*StepResult, error)
	Reset(ctx context.Context, runID string) (*engine.Snapshot, error)
	Start(ctx context.Context, runID string, interval time.Duration) (*RunInfo, error)
	Stop(ctx context.Context, runID string) (*RunInfo, error)

	// State
	Snapshot(ctx context.Context, runID string) (*engine.Snapshot, error)
	DescribeCampus(ctx context.Context, runID string) (*CampusInfo, error)

	// Scenarios
	ListScenarios(ctx context.Context) ([]*ScenarioInfo, error)
	LoadScenario(ctx context.Context, scenarioID string) (*engine.Scenario, error)
	SaveScenario(ctx context.Context, scenarioID string, scenario *engine.Scenario) error
}
