package main

import (
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/wricardo/campus-charging-sim/campus/config"
	"github.com/wricardo/campus-charging-sim/transport/mcp"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}

	expectedAppName := "Campus Charging Simulator"
	if AppName != expectedAppName {
		t.Errorf("Expected app name %s, got %s", expectedAppName, AppName)
	}
}

func TestInitializeServices(t *testing.T) {
	if _, err := os.Stat("configs"); os.IsNotExist(err) {
		t.Skip("Skipping test - configs directory not found")
	}

	svc, runs, err := initializeServices("configs", zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	if svc == nil || runs == nil {
		t.Fatal("Expected service and run manager to be initialized")
	}

	info, err := svc.CreateSimulation(context.Background(), "")
	if err != nil {
		t.Fatalf("Failed to create simulation from shipped configs: %v", err)
	}
	if runs.Count() != 1 {
		t.Errorf("Expected 1 run, got %d", runs.Count())
	}

	scenarios, err := svc.ListScenarios(context.Background())
	if err != nil {
		t.Fatalf("Failed to list scenarios: %v", err)
	}
	if len(scenarios) < 2 {
		t.Errorf("Expected at least 2 shipped scenarios, got %d", len(scenarios))
	}

	if _, err := svc.Step(context.Background(), info.ID, 25); err != nil {
		t.Errorf("Failed to step default scenario: %v", err)
	}
}

func TestShippedScenariosAreValid(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("configs", "*.json"))
	if err != nil || len(files) == 0 {
		t.Skip("Skipping test - no shipped scenarios")
	}

	scenarios, err := config.NewManager("configs")
	if err != nil {
		t.Fatalf("Failed to create scenario manager: %v", err)
	}
	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".json")
		if _, err := scenarios.LoadScenario(name); err != nil {
			t.Errorf("Scenario %s is invalid: %v", name, err)
		}
	}
}

func TestInitializeServices_InvalidScenarioDir(t *testing.T) {
	_, _, err := initializeServices("/non/existent/path", zerolog.Nop())
	if err == nil {
		t.Error("Expected error for non-existent scenario directory")
	}
}

func TestCleanupRoutine_StopsWithContext(t *testing.T) {
	_, runs, err := initializeServices(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cleanupRoutine(ctx, runs, time.Hour, zerolog.Nop())
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanupRoutine did not return after cancel")
	}
}

func TestApplyFlags(t *testing.T) {
	t.Cleanup(viper.Reset)
	if err := config.Load(""); err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if err := flag.CommandLine.Parse([]string{"-port", "9191", "-mcp"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}
	applyFlags()

	if got := config.GetInt(config.KeyPort); got != 9191 {
		t.Errorf("Expected port 9191, got %d", got)
	}
	if !config.GetBool(config.KeyMCPEnabled) {
		t.Error("Expected mcp.enabled to be set from flag")
	}
	if got := config.GetString(config.KeyScenariosDir); got != "configs" {
		t.Errorf("Expected unset flag to keep default scenarios dir, got %s", got)
	}
}

func TestLocalURL(t *testing.T) {
	tests := map[string]string{
		":8080":          "http://localhost:8080",
		"127.0.0.1:9000": "http://127.0.0.1:9000",
	}
	for addr, want := range tests {
		if got := localURL(addr); got != want {
			t.Errorf("localURL(%q) = %q, want %q", addr, got, want)
		}
	}
}

func TestMCPHandler(t *testing.T) {
	handler := mcpHandler(mcp.NewClient("http://127.0.0.1:1"))

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", rec.Code)
	}

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	req = httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	rec = httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	for _, tool := range []string{"create_simulation", "step_simulation", "describe_campus"} {
		if !strings.Contains(rec.Body.String(), tool) {
			t.Errorf("Expected tool %s in tools/list response", tool)
		}
	}
}
