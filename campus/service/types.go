package service

import (
	"context"
	"sync"
	"time"

	"github.com/wricardo/campus-charging-sim/campus/engine"
	"github.com/wricardo/campus-charging-sim/campus/layout"
)

// RunInfo provides information about a simulation run
type RunInfo struct {
	ID             string       `json:"id"`
	ScenarioID     string       `json:"scenario_id"`
	Name           string       `json:"name"`
	CreatedAt      time.Time    `json:"created_at"`
	LastAccessedAt time.Time    `json:"last_accessed_at"`
	Tick           int          `json:"tick"`
	Running        bool         `json:"running"`
	IntervalMS     int64        `json:"interval_ms,omitempty"`
	Vehicles       int          `json:"vehicles"`
	Robots         int          `json:"robots"`
	Stats          engine.Stats `json:"stats"`
}

// StepResult contains the result of advancing a run by several ticks
type StepResult struct {
	Ticks     int                 `json:"ticks"`
	Requested int                 `json:"requested"`
	Time      int                 `json:"time"`
	Reports   []engine.TickReport `json:"reports,omitempty"` // most recent ticks only
	Truncated bool                `json:"truncated,omitempty"`
	Limit     int                 `json:"limit,omitempty"`
	Snapshot  engine.Snapshot     `json:"snapshot"`
}

// CampusInfo describes the static campus of a run
type CampusInfo struct {
	Width        int                   `json:"width"`
	Height       int                   `json:"height"`
	RoadOffset   int                   `json:"road_offset"`
	RoadWidth    int                   `json:"road_width"`
	Gates        []layout.GateRegion   `json:"gates"`
	Stations     []layout.GridPosition `json:"stations"`
	ParkingSpots int                   `json:"parking_spots"`
	Rows         []string              `json:"rows,omitempty"`
}

// ScenarioInfo provides information about a scenario file
type ScenarioInfo struct {
	Filename    string `json:"filename"`
	ScenarioID  string `json:"scenario_id"` // The identifier to use for run creation
	Name        string `json:"name"`
	Description string `json:"description"`
	GridWidth   int    `json:"grid_width"`
	GridHeight  int    `json:"grid_height"`
	Gates       int    `json:"gates"`
	Robots      int    `json:"robots"`
	Policy      string `json:"policy"`
}

// RunManager defines run storage operations
type RunManager interface {
	Create(id, scenarioID string, scenario *engine.Scenario) (*Run, error)
	Get(id string) (*Run, error)
	List() []*Run
	Delete(id string) error
	UpdateLastAccessed(id string) error
}

// ScenarioManager handles scenario loading
type ScenarioManager interface {
	LoadScenario(name string) (*engine.Scenario, error)
	ListScenarios() ([]*ScenarioInfo, error)
	GetDefault() *engine.Scenario
	SaveScenario(name string, scenario *engine.Scenario) error
}

// SnapshotPublisher receives a snapshot whenever a run advances or resets
type SnapshotPublisher interface {
	Publish(runID string, snap engine.Snapshot)
}

// Run is one live simulation. mu serializes every access to Sim.
type Run struct {
	ID             string
	ScenarioID     string
	Scenario       *engine.Scenario
	Sim            *engine.Simulation
	CreatedAt      time.Time
	LastAccessedAt time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration
}

// NewRun wraps a simulation in a run record
func NewRun(id, scenarioID string, scenario *engine.Scenario, sim *engine.Simulation) *Run {
	now := time.Now()
	return &Run{
		ID:             id,
		ScenarioID:     scenarioID,
		Scenario:       scenario,
		Sim:            sim,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
}

// Running reports whether the background ticker is active
func (r *Run) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Touch records an access to the run
func (r *Run) Touch() {
	r.mu.Lock()
	r.LastAccessedAt = time.Now()
	r.mu.Unlock()
}

// LastAccessed returns the time of the most recent access
func (r *Run) LastAccessed() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.LastAccessedAt
}
