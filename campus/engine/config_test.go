package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/campus-charging-sim/campus/layout"
	"github.com/wricardo/campus-charging-sim/campus/routing"
)

func TestValidateScenario(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Scenario)
		expectError string
	}{
		{"default is valid", func(s *Scenario) {}, ""},
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"grid too small", func(s *Scenario) { s.GridWidth = 10 }, "grid_width"},
		{"grid too tall", func(s *Scenario) { s.GridHeight = layout.MaxGridSize + 1 }, "grid_height"},
		{"too many gates", func(s *Scenario) { s.Gates = 5 }, "gates must be between"},
		{"probability count mismatch", func(s *Scenario) { s.GateSpawnProbabilities = []float64{0.5} }, "must have 3 entries"},
		{"probability out of range", func(s *Scenario) { s.GateSpawnProbabilities = []float64{0.5, 1.2, 0.1} }, "gate_spawn_probabilities[1]"},
		{"inverted durations", func(s *Scenario) { s.MinParkingDuration, s.MaxParkingDuration = 30, 10 }, "parking duration"},
		{"unknown policy", func(s *Scenario) { s.Policy = "random" }, "unknown scheduling policy"},
		{"unknown status", func(s *Scenario) { s.AvailableStatuses = []string{"sleeping"} }, "unknown robot status"},
		{"busy status", func(s *Scenario) { s.AvailableStatuses = []string{"idle", "moving"} }, "cannot be listed in available_statuses"},
		{"charging status", func(s *Scenario) { s.AvailableStatuses = []string{"charging_vehicle"} }, "cannot be listed in available_statuses"},
		{"unknown routing", func(s *Scenario) { s.RobotRouting = "astar" }, "robot_routing"},
		{"duplicate robot", func(s *Scenario) { s.Robots = append(s.Robots, RobotConfig{ID: 1}) }, "duplicate robot id 1"},
		{"robot outside grid", func(s *Scenario) { s.Robots[0].Position = layout.GridPosition{X: 60, Y: 1} }, "outside the grid"},
		{"robot battery above max", func(s *Scenario) {
			b := 150.0
			s.Robots[0].Battery = &b
		}, "battery must be between"},
		{"threshold at max", func(s *Scenario) { s.Robots[0].MinBatteryThreshold = 100 }, "min_battery_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultScenario()
			tt.mutate(s)
			err := ValidateScenario(s)
			if tt.expectError == "" {
				if err != nil {
					t.Errorf("Expected valid scenario, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.expectError)
			}
			if !strings.Contains(err.Error(), tt.expectError) {
				t.Errorf("Expected error containing %q, got %q", tt.expectError, err.Error())
			}
			if !strings.HasPrefix(err.Error(), "scenario validation:") {
				t.Errorf("Expected scenario validation prefix, got %q", err.Error())
			}
		})
	}
}

func TestValidateScenario_DefaultsFillOmittedFields(t *testing.T) {
	s := &Scenario{Name: "minimal", GridWidth: 40, GridHeight: 40, Gates: 2}
	if err := ValidateScenario(s); err != nil {
		t.Fatalf("Expected minimal scenario to be valid, got %v", err)
	}

	cfg, err := ConfigFor(s)
	if err != nil {
		t.Fatalf("Failed to resolve config: %v", err)
	}
	if cfg.SpawnInterval != DefaultSpawnInterval {
		t.Errorf("Expected default spawn interval, got %d", cfg.SpawnInterval)
	}
	if len(cfg.GateSpawnProbabilities) != 2 || cfg.GateSpawnProbabilities[1] != 0.3 {
		t.Errorf("Expected default probabilities for 2 gates, got %v", cfg.GateSpawnProbabilities)
	}
	if cfg.MinParkingDuration != DefaultMinParkingDuration || cfg.MaxParkingDuration != DefaultMaxParkingDuration {
		t.Errorf("Expected default durations, got [%d,%d]", cfg.MinParkingDuration, cfg.MaxParkingDuration)
	}
}

func TestRobotConfig_Spec(t *testing.T) {
	empty := 0.0
	rc := RobotConfig{ID: 4, Position: layout.GridPosition{X: 3, Y: 3}, Battery: &empty, MaxBattery: 80}
	spec := rc.Spec()

	if spec.HomeStation != rc.Position {
		t.Errorf("Expected home station to default to position, got %+v", spec.HomeStation)
	}
	if spec.Battery != 0 || spec.MaxBattery != 80 {
		t.Errorf("Expected battery 0 of 80, got %.0f of %.0f", spec.Battery, spec.MaxBattery)
	}
	if spec.ChargeEfficiency != DefaultChargeEfficiency || spec.MinBatteryThreshold != DefaultRobotThreshold {
		t.Errorf("Expected default efficiency and threshold, got %.2f %.1f", spec.ChargeEfficiency, spec.MinBatteryThreshold)
	}

	full := RobotConfig{ID: 5, MaxBattery: 60}.Spec()
	if full.Battery != 60 {
		t.Errorf("Expected omitted battery to start full, got %.0f", full.Battery)
	}
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.json")
	data, err := json.Marshal(DefaultScenario())
	if err != nil {
		t.Fatalf("Failed to marshal scenario: %v", err)
	}
	if err := os.WriteFile(valid, data, 0644); err != nil {
		t.Fatalf("Failed to write scenario: %v", err)
	}

	s, err := LoadScenario(valid)
	if err != nil {
		t.Fatalf("Failed to load scenario: %v", err)
	}
	if s.Name != "default" || len(s.Robots) != 3 {
		t.Errorf("Unexpected scenario: %s with %d robots", s.Name, len(s.Robots))
	}
	if s.Robots[2].HomeStation == nil || *s.Robots[2].HomeStation != (layout.GridPosition{X: 25, Y: 25}) {
		t.Errorf("Expected robot 3 home at (25,25), got %v", s.Robots[2].HomeStation)
	}

	broken := filepath.Join(dir, "broken.json")
	os.WriteFile(broken, []byte("{not json"), 0644)
	if _, err := LoadScenario(broken); err == nil {
		t.Error("Expected parse error")
	}

	invalid := filepath.Join(dir, "invalid.json")
	os.WriteFile(invalid, []byte(`{"name":"x","grid_width":5,"grid_height":5}`), 0644)
	if _, err := LoadScenario(invalid); err == nil || !strings.Contains(err.Error(), "scenario validation") {
		t.Errorf("Expected validation error, got %v", err)
	}

	if _, err := LoadScenario(filepath.Join(dir, "missing.json")); !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestNewFromScenario(t *testing.T) {
	s := DefaultScenario()
	sim, err := NewFromScenario(s)
	if err != nil {
		t.Fatalf("Failed to create simulation: %v", err)
	}
	if len(sim.Robots()) != 3 {
		t.Errorf("Expected 3 robots, got %d", len(sim.Robots()))
	}
	w, h := sim.Campus().Size()
	if w != 50 || h != 50 {
		t.Errorf("Expected 50x50 campus, got %dx%d", w, h)
	}
	if len(sim.Campus().StationPositions()) != s.Stations {
		t.Errorf("Expected %d stations, got %d", s.Stations, len(sim.Campus().StationPositions()))
	}

	s.RobotRouting = RoutingGrid
	gridSim, err := NewFromScenario(s)
	if err != nil {
		t.Fatalf("Failed to create grid-routed simulation: %v", err)
	}
	if _, ok := gridSim.free.(routing.GridRouter); !ok {
		t.Errorf("Expected grid router, got %T", gridSim.free)
	}

	s.Name = ""
	if _, err := NewFromScenario(s); err == nil {
		t.Error("Expected invalid scenario to fail")
	}
}

func TestGenerateLayout_SameSeedSameCampus(t *testing.T) {
	a, err := GenerateLayout(DefaultScenario())
	if err != nil {
		t.Fatalf("Failed to generate layout: %v", err)
	}
	b, err := GenerateLayout(DefaultScenario())
	if err != nil {
		t.Fatalf("Failed to generate layout: %v", err)
	}
	if strings.Join(a.Render(), "\n") != strings.Join(b.Render(), "\n") {
		t.Error("Expected identical layouts for the same seed")
	}
}
