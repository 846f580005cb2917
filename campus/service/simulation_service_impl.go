package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wricardo/campus-charging-sim/campus/engine"
)

const (
	// MaxStepTicks caps a single Step call
	MaxStepTicks = 5000
	// MaxStepReports is how many trailing tick reports a Step returns
	MaxStepReports = 20
	// DefaultTickInterval is used when Start is called without an interval
	// and no WithTickInterval option is given
	DefaultTickInterval = 200 * time.Millisecond
	// MinTickInterval keeps background runs from spinning
	MinTickInterval = 10 * time.Millisecond
)

var (
	ErrSimulationNotFound = errors.New("simulation not found")
	ErrInvalidTicks       = errors.New("ticks must be positive")
	ErrAlreadyRunning     = errors.New("simulation is already running")
	ErrNotRunning         = errors.New("simulation is not running")
)

// simulationServiceImpl implements the SimulationService interface
type simulationServiceImpl struct {
	runs      RunManager
	scenarios ScenarioManager
	publisher SnapshotPublisher
	interval  time.Duration
	log       zerolog.Logger
}

// Option configures the simulation service
type Option func(*simulationServiceImpl)

// WithPublisher sends snapshots to p after every step, reset and background tick
func WithPublisher(p SnapshotPublisher) Option {
	return func(s *simulationServiceImpl) {
		s.publisher = p
	}
}

// WithTickInterval sets the interval Start uses when none is given
func WithTickInterval(d time.Duration) Option {
	return func(s *simulationServiceImpl) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the service logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *simulationServiceImpl) {
		s.log = log
	}
}

// NewSimulationService creates a new simulation service instance
func NewSimulationService(runs RunManager, scenarios ScenarioManager, opts ...Option) SimulationService {
	s := &simulationServiceImpl{
		runs:      runs,
		scenarios: scenarios,
		interval:  DefaultTickInterval,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// scenarioID returns the scenario_id for a display name, used for consistent API responses
func (s *simulationServiceImpl) scenarioID(name string) string {
	available, err := s.scenarios.ListScenarios()
	if err == nil {
		for _, info := range available {
			if info.Name == name {
				return info.ScenarioID
			}
		}
	}
	if name == "" {
		return "default"
	}
	return name
}

// CreateSimulation creates a new run from a scenario, or the default scenario when scenarioID is empty
func (s *simulationServiceImpl) CreateSimulation(ctx context.Context, scenarioID string) (*RunInfo, error) {
	var scenario *engine.Scenario
	var err error
	if scenarioID != "" {
		scenario, err = s.scenarios.LoadScenario(scenarioID)
		if err != nil {
			if strings.Contains(err.Error(), "scenario not found") {
				available, listErr := s.scenarios.ListScenarios()
				if listErr == nil && len(available) > 0 {
					var ids []string
					for _, info := range available {
						ids = append(ids, info.ScenarioID)
					}
					return nil, fmt.Errorf("scenario '%s' not found. Available scenarios: %v: %w", scenarioID, ids, err)
				}
				return nil, fmt.Errorf("scenario '%s' not found. Use /api/scenarios to list available scenarios: %w", scenarioID, err)
			}
			return nil, fmt.Errorf("failed to load scenario %s: %w", scenarioID, err)
		}
	} else {
		scenario = s.scenarios.GetDefault()
		scenarioID = s.scenarioID(scenario.Name)
	}

	run, err := s.runs.Create("", scenarioID, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulation: %w", err)
	}

	s.log.Info().Str("run", run.ID).Str("scenario", scenarioID).Msg("simulation created")
	return s.info(run), nil
}

// GetSimulation retrieves run information
func (s *simulationServiceImpl) GetSimulation(ctx context.Context, runID string) (*RunInfo, error) {
	run, err := s.touch(runID)
	if err != nil {
		return nil, err
	}
	return s.info(run), nil
}

// ListSimulations returns all live runs
func (s *simulationServiceImpl) ListSimulations(ctx context.Context) ([]*RunInfo, error) {
	runs := s.runs.List()
	result := make([]*RunInfo, 0, len(runs))
	for _, run := range runs {
		result = append(result, s.info(run))
	}
	return result, nil
}

// DeleteSimulation stops a run if needed and removes it
func (s *simulationServiceImpl) DeleteSimulation(ctx context.Context, runID string) error {
	run, err := s.runs.Get(runID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSimulationNotFound, err)
	}
	s.halt(run)

	if err := s.runs.Delete(runID); err != nil {
		return fmt.Errorf("failed to delete simulation: %w", err)
	}
	s.log.Info().Str("run", run.ID).Msg("simulation deleted")
	return nil
}

// Step advances a run by up to MaxStepTicks ticks, honoring ctx between ticks
func (s *simulationServiceImpl) Step(ctx context.Context, runID string, ticks int) (*StepResult, error) {
	if ticks <= 0 {
		return nil, ErrInvalidTicks
	}
	run, err := s.touch(runID)
	if err != nil {
		return nil, err
	}

	result := &StepResult{Requested: ticks}
	if ticks > MaxStepTicks {
		ticks = MaxStepTicks
		result.Truncated = true
		result.Limit = MaxStepTicks
	}

	run.mu.Lock()
	for i := 0; i < ticks; i++ {
		if ctx.Err() != nil {
			break
		}
		report := run.Sim.Tick()
		result.Ticks++
		result.Reports = append(result.Reports, report)
		if len(result.Reports) > MaxStepReports {
			result.Reports = result.Reports[1:]
		}
	}
	result.Time = run.Sim.Time()
	result.Snapshot = run.Sim.Snapshot()
	run.mu.Unlock()

	s.publish(run.ID, result.Snapshot)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("step interrupted after %d ticks: %w", result.Ticks, err)
	}
	return result, nil
}

// Reset rewinds a run to tick zero with its original seed
func (s *simulationServiceImpl) Reset(ctx context.Context, runID string) (*engine.Snapshot, error) {
	run, err := s.touch(runID)
	if err != nil {
		return nil, err
	}

	run.mu.Lock()
	err = run.Sim.Reset()
	snap := run.Sim.Snapshot()
	run.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to reset simulation: %w", err)
	}

	s.publish(run.ID, snap)
	return &snap, nil
}

// Start ticks a run in the background every interval until Stop or Delete
func (s *simulationServiceImpl) Start(ctx context.Context, runID string, interval time.Duration) (*RunInfo, error) {
	run, err := s.touch(runID)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = s.interval
	}
	interval = max(interval, MinTickInterval)

	run.mu.Lock()
	if run.cancel != nil {
		run.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	run.cancel = cancel
	run.done = done
	run.interval = interval
	run.mu.Unlock()

	go s.loop(loopCtx, run, interval, done)

	s.log.Info().Str("run", run.ID).Dur("interval", interval).Msg("simulation started")
	return s.info(run), nil
}

// Stop halts the background ticker and waits for it to exit
func (s *simulationServiceImpl) Stop(ctx context.Context, runID string) (*RunInfo, error) {
	run, err := s.touch(runID)
	if err != nil {
		return nil, err
	}
	if !s.halt(run) {
		return nil, ErrNotRunning
	}
	s.log.Info().Str("run", run.ID).Int("tick", s.info(run).Tick).Msg("simulation stopped")
	return s.info(run), nil
}

// Snapshot returns the current renderer view of a run
func (s *simulationServiceImpl) Snapshot(ctx context.Context, runID string) (*engine.Snapshot, error) {
	run, err := s.touch(runID)
	if err != nil {
		return nil, err
	}
	run.mu.Lock()
	snap := run.Sim.Snapshot()
	run.mu.Unlock()
	return &snap, nil
}

// DescribeCampus returns the static campus geometry of a run
func (s *simulationServiceImpl) DescribeCampus(ctx context.Context, runID string) (*CampusInfo, error) {
	run, err := s.touch(runID)
	if err != nil {
		return nil, err
	}

	// The campus is never mutated after creation
	c := run.Sim.Campus()
	w, h := c.Size()
	info := &CampusInfo{
		Width:        w,
		Height:       h,
		RoadOffset:   c.RoadOffset(),
		RoadWidth:    c.RoadWidth(),
		Gates:        c.Gates(),
		Stations:     c.StationPositions(),
		ParkingSpots: len(c.ParkingSpots()),
	}
	if r, ok := c.(interface{ Render() []string }); ok {
		info.Rows = r.Render()
	}
	return info, nil
}

// ListScenarios returns all available scenarios
func (s *simulationServiceImpl) ListScenarios(ctx context.Context) ([]*ScenarioInfo, error) {
	return s.scenarios.ListScenarios()
}

// LoadScenario loads a specific scenario
func (s *simulationServiceImpl) LoadScenario(ctx context.Context, scenarioID string) (*engine.Scenario, error) {
	return s.scenarios.LoadScenario(scenarioID)
}

// SaveScenario saves a scenario
func (s *simulationServiceImpl) SaveScenario(ctx context.Context, scenarioID string, scenario *engine.Scenario) error {
	return s.scenarios.SaveScenario(scenarioID, scenario)
}

func (s *simulationServiceImpl) touch(runID string) (*Run, error) {
	run, err := s.runs.Get(runID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSimulationNotFound, err)
	}
	s.runs.UpdateLastAccessed(runID)
	return run, nil
}

func (s *simulationServiceImpl) loop(ctx context.Context, run *Run, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run.mu.Lock()
			run.Sim.Tick()
			snap := run.Sim.Snapshot()
			run.mu.Unlock()
			s.publish(run.ID, snap)
		}
	}
}

// halt cancels the ticker goroutine and waits for it without holding the run lock.
// It reports whether a ticker was running.
func (s *simulationServiceImpl) halt(run *Run) bool {
	run.mu.Lock()
	cancel, done := run.cancel, run.done
	run.cancel, run.done, run.interval = nil, nil, 0
	run.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (s *simulationServiceImpl) publish(runID string, snap engine.Snapshot) {
	if s.publisher != nil {
		s.publisher.Publish(runID, snap)
	}
}

func (s *simulationServiceImpl) info(run *Run) *RunInfo {
	run.mu.Lock()
	defer run.mu.Unlock()

	info := &RunInfo{
		ID:             run.ID,
		ScenarioID:     run.ScenarioID,
		CreatedAt:      run.CreatedAt,
		LastAccessedAt: run.LastAccessedAt,
		Tick:           run.Sim.Time(),
		Running:        run.cancel != nil,
		IntervalMS:     run.interval.Milliseconds(),
		Vehicles:       len(run.Sim.Vehicles()),
		Robots:         len(run.Sim.Robots()),
		Stats:          run.Sim.Stats(),
	}
	if run.Scenario != nil {
		info.Name = run.Scenario.Name
	}
	return info
}
