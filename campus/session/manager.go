package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/campus-charging-sim/campus/engine"
	"github.com/wricardo/campus-charging-sim/campus/service"
)

var (
	ErrRunNotFound      = errors.New("run not found")
	ErrRunAlreadyExists = errors.New("run already exists")
	ErrNilScenario      = errors.New("scenario is nil")
)

// idLength is how many hex characters of a UUID make up a run ID
const idLength = 8

// Manager handles simulation run lifecycle
type Manager struct {
	runs map[string]*service.Run
	opts []engine.Option
	mu   sync.RWMutex
}

// NewManager creates a new run manager. opts are applied to every simulation it builds.
func NewManager(opts ...engine.Option) *Manager {
	return &Manager{
		runs: make(map[string]*service.Run),
		opts: opts,
	}
}

// Create builds a simulation from the scenario and registers it under id.
// An empty id is replaced with a generated one.
func (m *Manager) Create(id, scenarioID string, scenario *engine.Scenario) (*service.Run, error) {
	if scenario == nil {
		return nil, ErrNilScenario
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = m.generateRunID()
	}
	if _, exists := m.runs[strings.ToLower(id)]; exists {
		return nil, ErrRunAlreadyExists
	}

	sim, err := engine.NewFromScenario(scenario, m.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulation: %w", err)
	}

	run := service.NewRun(id, scenarioID, scenario, sim)
	m.runs[strings.ToLower(id)] = run
	return run, nil
}

// Get retrieves a run by ID (case-insensitive)
func (m *Manager) Get(id string) (*service.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, exists := m.runs[strings.ToLower(id)]
	if !exists {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// List returns all runs, oldest first
func (m *Manager) List() []*service.Run {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Run, 0, len(m.runs))
	for _, run := range m.runs {
		result = append(result, run)
	}
	sortByCreation(result)
	return result
}

// Delete removes a run
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(id)
	if _, exists := m.runs[key]; !exists {
		return ErrRunNotFound
	}
	delete(m.runs, key)
	return nil
}

// UpdateLastAccessed updates the last accessed time for a run
func (m *Manager) UpdateLastAccessed(id string) error {
	run, err := m.Get(id)
	if err != nil {
		return err
	}
	run.Touch()
	return nil
}

// CleanupExpiredRuns removes idle runs that haven't been accessed in maxAge.
// Runs with an active background ticker are kept.
func (m *Manager) CleanupExpiredRuns(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, run := range m.runs {
		if run.Running() {
			continue
		}
		if run.LastAccessed().Before(cutoff) {
			delete(m.runs, id)
			removed++
		}
	}

	return removed
}

// Count returns the number of runs
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// generateRunID returns a short random ID not already in use. Callers hold mu.
func (m *Manager) generateRunID() string {
	for {
		id := strings.ReplaceAll(uuid.New().String(), "-", "")[:idLength]
		if _, exists := m.runs[id]; !exists {
			return id
		}
	}
}

func sortByCreation(runs []*service.Run) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
}
