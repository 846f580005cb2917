package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/campus-charging-sim/campus/engine"
)

func createTestScenario() *engine.Scenario {
	s := engine.DefaultScenario()
	s.Name = "Test Scenario"
	s.GridWidth, s.GridHeight = 30, 30
	s.Robots = s.Robots[:1]
	return s
}

func TestManager_Create(t *testing.T) {
	manager := NewManager()
	scenario := createTestScenario()

	t.Run("create with custom ID", func(t *testing.T) {
		run, err := manager.Create("test-run", "test", scenario)
		if err != nil {
			t.Fatalf("Failed to create run: %v", err)
		}
		if run.ID != "test-run" {
			t.Errorf("Expected run ID 'test-run', got '%s'", run.ID)
		}
		if run.Sim == nil {
			t.Error("Expected simulation to be initialized")
		}
		if run.ScenarioID != "test" {
			t.Errorf("Expected scenario ID 'test', got '%s'", run.ScenarioID)
		}
	})

	t.Run("create with auto-generated ID", func(t *testing.T) {
		run, err := manager.Create("", "test", scenario)
		if err != nil {
			t.Fatalf("Failed to create run: %v", err)
		}
		if len(run.ID) != idLength {
			t.Errorf("Expected %d-character run ID, got %q", idLength, run.ID)
		}
	})

	t.Run("case-insensitive duplicate check", func(t *testing.T) {
		_, err := manager.Create("TEST-RUN", "test", scenario)
		if !errors.Is(err, ErrRunAlreadyExists) {
			t.Errorf("Expected ErrRunAlreadyExists for case variant, got %v", err)
		}
	})

	t.Run("invalid scenario", func(t *testing.T) {
		invalid := createTestScenario()
		invalid.Name = ""
		if _, err := manager.Create("invalid-test", "test", invalid); err == nil {
			t.Error("Expected error for invalid scenario")
		}
		if _, err := manager.Get("invalid-test"); !errors.Is(err, ErrRunNotFound) {
			t.Error("Expected failed run not to be registered")
		}
	})

	t.Run("nil scenario", func(t *testing.T) {
		if _, err := manager.Create("nil-test", "", nil); !errors.Is(err, ErrNilScenario) {
			t.Errorf("Expected ErrNilScenario, got %v", err)
		}
	})
}

func TestManager_GetAndDelete(t *testing.T) {
	manager := NewManager()
	created, err := manager.Create("get-test", "test", createTestScenario())
	if err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}

	run, err := manager.Get("GET-TEST")
	if err != nil {
		t.Fatalf("Failed to get run with different case: %v", err)
	}
	if run != created {
		t.Error("Expected same run regardless of case")
	}

	if err := manager.Delete("Get-Test"); err != nil {
		t.Fatalf("Failed to delete run: %v", err)
	}
	if _, err := manager.Get("get-test"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound after delete, got %v", err)
	}
	if err := manager.Delete("get-test"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound on second delete, got %v", err)
	}
}

func TestManager_ListOrderedByCreation(t *testing.T) {
	manager := NewManager()
	scenario := createTestScenario()
	for _, id := range []string{"c", "a", "b"} {
		if _, err := manager.Create(id, "test", scenario); err != nil {
			t.Fatalf("Failed to create run %s: %v", id, err)
		}
	}

	runs := manager.List()
	if len(runs) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].CreatedAt.Before(runs[i-1].CreatedAt) {
			t.Errorf("Expected runs sorted by creation, got %s before %s", runs[i-1].ID, runs[i].ID)
		}
	}
	if manager.Count() != 3 {
		t.Errorf("Expected count 3, got %d", manager.Count())
	}
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := NewManager()
	run, _ := manager.Create("touch-test", "test", createTestScenario())
	before := run.LastAccessed()

	time.Sleep(5 * time.Millisecond)
	if err := manager.UpdateLastAccessed("touch-test"); err != nil {
		t.Fatalf("Failed to update last accessed: %v", err)
	}
	if !run.LastAccessed().After(before) {
		t.Error("Expected last accessed time to advance")
	}
	if err := manager.UpdateLastAccessed("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestManager_CleanupExpiredRuns(t *testing.T) {
	manager := NewManager()
	scenario := createTestScenario()

	old, _ := manager.Create("old", "test", scenario)
	manager.Create("fresh", "test", scenario)
	old.LastAccessedAt = time.Now().Add(-2 * time.Hour)

	removed := manager.CleanupExpiredRuns(time.Hour)
	if removed != 1 {
		t.Errorf("Expected 1 run removed, got %d", removed)
	}
	if _, err := manager.Get("old"); !errors.Is(err, ErrRunNotFound) {
		t.Error("Expected old run to be removed")
	}
	if _, err := manager.Get("fresh"); err != nil {
		t.Errorf("Expected fresh run to remain, got %v", err)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := NewManager()
	scenario := createTestScenario()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, err := manager.Create("", "test", scenario)
			if err != nil {
				t.Errorf("Failed to create run: %v", err)
				return
			}
			manager.Get(run.ID)
			manager.UpdateLastAccessed(run.ID)
			manager.List()
		}()
	}
	wg.Wait()

	if manager.Count() != 10 {
		t.Errorf("Expected 10 runs, got %d", manager.Count())
	}
}
