package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/campus-charging-sim/campus/engine"
	"github.com/wricardo/campus-charging-sim/campus/scheduler"
	"github.com/wricardo/campus-charging-sim/campus/service"
)

var (
	ErrScenarioNotFound = errors.New("scenario not found")
	ErrInvalidScenario  = errors.New("invalid scenario")
	ErrInvalidName      = errors.New("invalid scenario name")
)

// DefaultScenarioName is the file preferred as the default scenario
const DefaultScenarioName = "default"

// Manager handles scenario loading and caching
type Manager struct {
	scenarioDir     string
	defaultScenario *engine.Scenario
	scenarios       map[string]*engine.Scenario
	mu              sync.RWMutex
}

// NewManager creates a new scenario manager over dir
func NewManager(dir string) (*Manager, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("scenario directory does not exist: %s", dir)
	}

	m := &Manager{
		scenarioDir: dir,
		scenarios:   make(map[string]*engine.Scenario),
	}
	m.defaultScenario = m.resolveDefault()
	return m, nil
}

// LoadScenario loads a scenario by name, with or without the .json extension
func (m *Manager) LoadScenario(name string) (*engine.Scenario, error) {
	key, err := scenarioKey(name)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	if scenario, exists := m.scenarios[key]; exists {
		m.mu.RUnlock()
		return scenario, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if scenario, exists := m.scenarios[key]; exists {
		return scenario, nil
	}

	scenario, err := m.readScenario(key)
	if err != nil {
		return nil, err
	}
	m.scenarios[key] = scenario
	return scenario, nil
}

// ReloadScenario drops any cached copy and reads the file again
func (m *Manager) ReloadScenario(name string) (*engine.Scenario, error) {
	key, err := scenarioKey(name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.scenarios, key)
	scenario, err := m.readScenario(key)
	if err != nil {
		return nil, err
	}
	m.scenarios[key] = scenario
	return scenario, nil
}

// ListScenarios returns information about all valid scenarios in the directory
func (m *Manager) ListScenarios() ([]*service.ScenarioInfo, error) {
	entries, err := os.ReadDir(m.scenarioDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var scenarios []*service.ScenarioInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".json")
		scenario, err := m.LoadScenario(name)
		if err != nil {
			// Skip invalid scenarios
			continue
		}

		policy := scenario.Policy
		if policy == "" {
			policy = scheduler.NearestTaskFirstName
		}
		scenarios = append(scenarios, &service.ScenarioInfo{
			Filename:    entry.Name(),
			ScenarioID:  name,
			Name:        scenario.Name,
			Description: scenario.Description,
			GridWidth:   scenario.GridWidth,
			GridHeight:  scenario.GridHeight,
			Gates:       scenario.Gates,
			Robots:      len(scenario.Robots),
			Policy:      policy,
		})
	}

	sort.Slice(scenarios, func(i, j int) bool {
		return scenarios[i].ScenarioID < scenarios[j].ScenarioID
	})
	return scenarios, nil
}

// GetDefault returns the default scenario
func (m *Manager) GetDefault() *engine.Scenario {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultScenario
}

// SetDefault sets the default scenario by name
func (m *Manager) SetDefault(name string) error {
	scenario, err := m.LoadScenario(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultScenario = scenario
	return nil
}

// RefreshCache clears every cached scenario and re-resolves the default
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.scenarios = make(map[string]*engine.Scenario)
	m.mu.Unlock()

	def := m.resolveDefault()

	m.mu.Lock()
	m.defaultScenario = def
	m.mu.Unlock()
}

// ValidateScenario checks a scenario without touching the directory
func (m *Manager) ValidateScenario(scenario *engine.Scenario) error {
	if scenario == nil {
		return fmt.Errorf("%w: scenario is nil", ErrInvalidScenario)
	}
	if err := engine.ValidateScenario(scenario); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	return nil
}

// SaveScenario validates a scenario and writes it to disk
func (m *Manager) SaveScenario(name string, scenario *engine.Scenario) error {
	key, err := scenarioKey(name)
	if err != nil {
		return err
	}
	if err := m.ValidateScenario(scenario); err != nil {
		return err
	}

	data, err := json.MarshalIndent(scenario, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}

	path := filepath.Join(m.scenarioDir, key+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}

	m.mu.Lock()
	m.scenarios[key] = scenario
	m.mu.Unlock()

	return nil
}

// readScenario reads and validates one file. Callers hold mu.
func (m *Manager) readScenario(key string) (*engine.Scenario, error) {
	data, err := os.ReadFile(filepath.Join(m.scenarioDir, key+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrScenarioNotFound, key)
		}
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario engine.Scenario
	if err := json.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := engine.ValidateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	return &scenario, nil
}

// resolveDefault prefers default.json, then the first valid file, then the built-in scenario
func (m *Manager) resolveDefault() *engine.Scenario {
	if scenario, err := m.LoadScenario(DefaultScenarioName); err == nil {
		return scenario
	}

	available, err := m.ListScenarios()
	if err == nil && len(available) > 0 {
		if scenario, err := m.LoadScenario(available[0].ScenarioID); err == nil {
			return scenario
		}
	}

	return engine.DefaultScenario()
}

// scenarioKey normalizes a scenario name into its file stem
func scenarioKey(name string) (string, error) {
	key := strings.TrimSuffix(name, ".json")
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return key, nil
}
