package engine

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/wricardo/campus-charging-sim/campus/layout"
	"github.com/wricardo/campus-charging-sim/campus/routing"
	"github.com/wricardo/campus-charging-sim/campus/scheduler"
)

const (
	RoutingManhattan = "manhattan"
	RoutingGrid      = "grid"

	MaxGates = 4

	layoutStream = 0x1a70_07ca_5e57_ea11
)

// RobotConfig is one robot entry in a scenario roster
type RobotConfig struct {
	ID                  int                  `json:"id"`
	Position            layout.GridPosition  `json:"position"`
	HomeStation         *layout.GridPosition `json:"home_station,omitempty"`
	Battery             *float64             `json:"battery,omitempty"`
	MaxBattery          float64              `json:"max_battery,omitempty"`
	MoveSpeed           int                  `json:"move_speed,omitempty"`
	ChargeEfficiency    float64              `json:"charge_efficiency,omitempty"`
	MinBatteryThreshold float64              `json:"min_battery_threshold,omitempty"`
}

// Spec resolves omitted fields to robot defaults
func (rc RobotConfig) Spec() RobotSpec {
	home := rc.Position
	if rc.HomeStation != nil {
		home = *rc.HomeStation
	}
	spec := DefaultRobotSpec(rc.ID, rc.Position, home)
	if rc.MaxBattery > 0 {
		spec.MaxBattery = rc.MaxBattery
	}
	spec.Battery = spec.MaxBattery
	if rc.Battery != nil {
		spec.Battery = *rc.Battery
	}
	if rc.MoveSpeed > 0 {
		spec.MoveSpeed = rc.MoveSpeed
	}
	if rc.ChargeEfficiency > 0 {
		spec.ChargeEfficiency = rc.ChargeEfficiency
	}
	if rc.MinBatteryThreshold > 0 {
		spec.MinBatteryThreshold = rc.MinBatteryThreshold
	}
	return spec
}

// Scenario is a complete, file-backed description of a simulation run
type Scenario struct {
	Name                   string        `json:"name"`
	Description            string        `json:"description"`
	GridWidth              int           `json:"grid_width"`
	GridHeight             int           `json:"grid_height"`
	Buildings              int           `json:"buildings"`
	Stations               int           `json:"stations"`
	Gates                  int           `json:"gates"`
	SpawnInterval          int           `json:"spawn_interval,omitempty"`
	GateSpawnProbabilities []float64     `json:"gate_spawn_probabilities,omitempty"`
	MinParkingDuration     int           `json:"min_parking_duration,omitempty"`
	MaxParkingDuration     int           `json:"max_parking_duration,omitempty"`
	Policy                 string        `json:"policy,omitempty"`
	AvailableStatuses      []string      `json:"available_statuses,omitempty"`
	RechargeResumeLevel    float64       `json:"recharge_resume_level,omitempty"`
	RobotRouting           string        `json:"robot_routing,omitempty"`
	Seed                   uint64        `json:"seed"`
	Robots                 []RobotConfig `json:"robots"`
}

// DefaultScenario returns the stock 50x50 campus with three robots
func DefaultScenario() *Scenario {
	home := func(x, y int) *layout.GridPosition { return &layout.GridPosition{X: x, Y: y} }
	return &Scenario{
		Name:                   "default",
		Description:            "50x50 campus, three gates, three charging robots",
		GridWidth:              50,
		GridHeight:             50,
		Buildings:              4,
		Stations:               3,
		Gates:                  3,
		SpawnInterval:          DefaultSpawnInterval,
		GateSpawnProbabilities: append([]float64(nil), DefaultGateSpawnProbabilities...),
		MinParkingDuration:     DefaultMinParkingDuration,
		MaxParkingDuration:     DefaultMaxParkingDuration,
		Policy:                 scheduler.NearestTaskFirstName,
		RobotRouting:           RoutingManhattan,
		Seed:                   1,
		Robots: []RobotConfig{
			{ID: 1, Position: layout.GridPosition{X: 10, Y: 10}, HomeStation: home(10, 10)},
			{ID: 2, Position: layout.GridPosition{X: 20, Y: 20}, HomeStation: home(20, 20)},
			{ID: 3, Position: layout.GridPosition{X: 30, Y: 30}, HomeStation: home(25, 25)},
		},
	}
}

// withDefaults returns a copy with omitted clock fields filled in
func (s *Scenario) withDefaults() *Scenario {
	out := *s
	if out.SpawnInterval == 0 {
		out.SpawnInterval = DefaultSpawnInterval
	}
	if out.MinParkingDuration == 0 && out.MaxParkingDuration == 0 {
		out.MinParkingDuration = DefaultMinParkingDuration
		out.MaxParkingDuration = DefaultMaxParkingDuration
	}
	if len(out.GateSpawnProbabilities) == 0 {
		out.GateSpawnProbabilities = defaultProbabilities(out.Gates)
	}
	if len(out.AvailableStatuses) == 0 {
		out.AvailableStatuses = []string{string(Idle), string(BeingCharged)}
	}
	if out.RechargeResumeLevel == 0 {
		out.RechargeResumeLevel = DefaultResumeLevel
	}
	if out.RobotRouting == "" {
		out.RobotRouting = RoutingManhattan
	}
	return &out
}

// defaultProbabilities extends the stock per-gate chances to n gates,
// repeating the last one
func defaultProbabilities(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = DefaultGateSpawnProbabilities[min(i, len(DefaultGateSpawnProbabilities)-1)]
	}
	return out
}

// ValidateScenario checks a scenario for correctness before it is run
func ValidateScenario(scenario *Scenario) error {
	if scenario == nil {
		return fmt.Errorf("scenario validation: scenario is nil")
	}
	if scenario.Name == "" {
		return fmt.Errorf("scenario validation: name is required")
	}
	s := scenario.withDefaults()

	if s.GridWidth < layout.MinGridSize || s.GridWidth > layout.MaxGridSize {
		return fmt.Errorf("scenario validation: grid_width must be between %d and %d, got %d", layout.MinGridSize, layout.MaxGridSize, s.GridWidth)
	}
	if s.GridHeight < layout.MinGridSize || s.GridHeight > layout.MaxGridSize {
		return fmt.Errorf("scenario validation: grid_height must be between %d and %d, got %d", layout.MinGridSize, layout.MaxGridSize, s.GridHeight)
	}
	if s.Buildings < 0 || s.Stations < 0 {
		return fmt.Errorf("scenario validation: buildings and stations must be non-negative")
	}
	if s.Gates < 0 || s.Gates > MaxGates {
		return fmt.Errorf("scenario validation: gates must be between 0 and %d, got %d", MaxGates, s.Gates)
	}

	if s.SpawnInterval < 0 {
		return fmt.Errorf("scenario validation: spawn_interval must be non-negative, got %d", s.SpawnInterval)
	}
	if len(s.GateSpawnProbabilities) != s.Gates {
		return fmt.Errorf("scenario validation: gate_spawn_probabilities must have %d entries to match gates, got %d",
			s.Gates, len(s.GateSpawnProbabilities))
	}
	for i, p := range s.GateSpawnProbabilities {
		if p < 0 || p > 1 {
			return fmt.Errorf("scenario validation: gate_spawn_probabilities[%d] must be between 0 and 1, got %.2f", i, p)
		}
	}
	if s.MinParkingDuration < 0 || s.MinParkingDuration > s.MaxParkingDuration {
		return fmt.Errorf("scenario validation: parking duration range [%d,%d] is invalid", s.MinParkingDuration, s.MaxParkingDuration)
	}

	if _, err := scheduler.ByName(s.Policy); err != nil {
		return fmt.Errorf("scenario validation: %w", err)
	}
	for _, st := range s.AvailableStatuses {
		switch RobotStatus(st) {
		case Idle, BeingCharged:
		case Moving, ChargingVehicle:
			return fmt.Errorf("scenario validation: robot status %q cannot be listed in available_statuses, only idle and being_charged robots take tasks", st)
		default:
			return fmt.Errorf("scenario validation: unknown robot status %q in available_statuses", st)
		}
	}
	if s.RechargeResumeLevel < 0 || s.RechargeResumeLevel > FullBattery {
		return fmt.Errorf("scenario validation: recharge_resume_level must be between 0 and %.0f, got %.1f", FullBattery, s.RechargeResumeLevel)
	}
	if s.RobotRouting != RoutingManhattan && s.RobotRouting != RoutingGrid {
		return fmt.Errorf("scenario validation: robot_routing must be %q or %q, got %q", RoutingManhattan, RoutingGrid, s.RobotRouting)
	}

	inBounds := func(p layout.GridPosition) bool {
		return p.X >= 0 && p.X < s.GridWidth && p.Y >= 0 && p.Y < s.GridHeight
	}
	seen := make(map[int]bool, len(s.Robots))
	for _, rc := range s.Robots {
		if seen[rc.ID] {
			return fmt.Errorf("scenario validation: duplicate robot id %d", rc.ID)
		}
		seen[rc.ID] = true

		spec := rc.Spec()
		if !inBounds(spec.Position) {
			return fmt.Errorf("scenario validation: robot %d position (%d, %d) is outside the grid", rc.ID, spec.Position.X, spec.Position.Y)
		}
		if !inBounds(spec.HomeStation) {
			return fmt.Errorf("scenario validation: robot %d home station (%d, %d) is outside the grid", rc.ID, spec.HomeStation.X, spec.HomeStation.Y)
		}
		if spec.Battery < 0 || spec.Battery > spec.MaxBattery {
			return fmt.Errorf("scenario validation: robot %d battery must be between 0 and max_battery (%.1f), got %.1f", rc.ID, spec.MaxBattery, spec.Battery)
		}
		if spec.ChargeEfficiency > 1 {
			return fmt.Errorf("scenario validation: robot %d charge_efficiency must be at most 1, got %.2f", rc.ID, spec.ChargeEfficiency)
		}
		if spec.MinBatteryThreshold >= spec.MaxBattery {
			return fmt.Errorf("scenario validation: robot %d min_battery_threshold must be below max_battery", rc.ID)
		}
	}

	return nil
}

// LoadScenario reads and validates a scenario JSON file
func LoadScenario(filename string) (*Scenario, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := json.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario '%s': %w", filename, err)
	}

	if err := ValidateScenario(&scenario); err != nil {
		return nil, err
	}
	return &scenario, nil
}

// GenerateLayout builds the scenario's campus from its seed
func GenerateLayout(scenario *Scenario) (*layout.Layout, error) {
	rng := rand.New(rand.NewPCG(scenario.Seed, layoutStream))
	return layout.Generate(layout.Options{
		Width:     scenario.GridWidth,
		Height:    scenario.GridHeight,
		Buildings: scenario.Buildings,
		Stations:  scenario.Stations,
		Gates:     scenario.Gates,
	}, rng)
}

// ConfigFor resolves the clock config for a scenario
func ConfigFor(scenario *Scenario) (Config, error) {
	s := scenario.withDefaults()
	policy, err := scheduler.ByName(s.Policy)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		SpawnInterval:          s.SpawnInterval,
		GateSpawnProbabilities: append([]float64(nil), s.GateSpawnProbabilities...),
		MinParkingDuration:     s.MinParkingDuration,
		MaxParkingDuration:     s.MaxParkingDuration,
		Policy:                 policy,
		RechargeResumeLevel:    s.RechargeResumeLevel,
		Seed:                   s.Seed,
	}
	for _, st := range s.AvailableStatuses {
		cfg.AvailableStatuses = append(cfg.AvailableStatuses, RobotStatus(st))
	}
	for _, rc := range s.Robots {
		cfg.Robots = append(cfg.Robots, rc.Spec())
	}
	return cfg, nil
}

// NewFromScenario validates the scenario, generates its campus and creates the simulation
func NewFromScenario(scenario *Scenario, opts ...Option) (*Simulation, error) {
	if err := ValidateScenario(scenario); err != nil {
		return nil, err
	}

	campus, err := GenerateLayout(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to generate campus: %w", err)
	}

	cfg, err := ConfigFor(scenario)
	if err != nil {
		return nil, err
	}

	if scenario.withDefaults().RobotRouting == RoutingGrid {
		opts = append([]Option{WithFreeRouter(routing.GridRouter{Grid: campus})}, opts...)
	}
	return New(campus, cfg, opts...)
}
