package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/campus-charging-sim/campus/engine"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	app.ErrWriter = &buf
	err := app.Run(context.Background(), append([]string{"campussim"}, args...))
	return buf.String(), err
}

func writeScenario(t *testing.T, dir, name string, scenario *engine.Scenario) string {
	t.Helper()
	data, err := json.Marshal(scenario)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRunCommand_DefaultScenario(t *testing.T) {
	out, err := runApp(t, "run", "--ticks", "30")
	require.NoError(t, err)

	assert.Contains(t, out, "Scenario: default (seed 1)")
	assert.Contains(t, out, "Ticks: 30")
	assert.Contains(t, out, "Robots:")
	assert.Equal(t, 3, strings.Count(out, "battery "), "one line per robot")
}

func TestRunCommand_JSON(t *testing.T) {
	out, err := runApp(t, "run", "--ticks", "10", "--json")
	require.NoError(t, err)

	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, 10, snap.Tick)
	assert.Len(t, snap.Robots, 3)
}

func TestRunCommand_Deterministic(t *testing.T) {
	first, err := runApp(t, "run", "--ticks", "60", "--seed", "42", "--json")
	require.NoError(t, err)
	second, err := runApp(t, "run", "--ticks", "60", "--seed", "42", "--json")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunCommand_InvalidInput(t *testing.T) {
	_, err := runApp(t, "run", "--ticks", "0")
	assert.ErrorContains(t, err, "ticks must be positive")

	_, err = runApp(t, "run", "--seed=-1")
	assert.ErrorContains(t, err, "seed must not be negative")

	_, err = runApp(t, "run", "--scenario", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLayoutCommand(t *testing.T) {
	out, err := runApp(t, "layout")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 51, "header plus one line per row")
	assert.True(t, strings.HasPrefix(lines[0], "default: 50x50"))
	for _, row := range lines[1:] {
		assert.Len(t, row, 50)
	}
}

func TestLayoutCommand_Deterministic(t *testing.T) {
	dir := t.TempDir()
	scenario := engine.DefaultScenario()
	path := writeScenario(t, dir, "campus.json", scenario)

	a, err := runApp(t, "layout", "--seed", "1", path)
	require.NoError(t, err)
	b, err := runApp(t, "layout", "--seed", "1", path)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "good.json", engine.DefaultScenario())

	out, err := runApp(t, "validate", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "OK    good.json")
	assert.Contains(t, out, "1 files, 0 invalid")

	bad := engine.DefaultScenario()
	bad.GridWidth = 10
	writeScenario(t, dir, "bad.json", bad)

	out, err = runApp(t, "validate", "--dir", dir)
	assert.ErrorContains(t, err, "1 invalid scenario files")
	assert.Contains(t, out, "FAIL  bad.json")
	assert.Contains(t, out, "grid_width must be between")
}

func TestValidateCommand_NoFiles(t *testing.T) {
	_, err := runApp(t, "validate", "--dir", t.TempDir())
	assert.ErrorContains(t, err, "no scenario files found")
}

func TestValidateScenarioFile_Warnings(t *testing.T) {
	dir := t.TempDir()
	scenario := engine.DefaultScenario()
	scenario.Robots = nil
	path := writeScenario(t, dir, "empty.json", scenario)

	result := validateScenarioFile(path)
	assert.True(t, result.Valid)
	assert.Contains(t, result.Warnings, "scenario has no robots, no vehicle will be charged")
}

func TestValidateScenarioFile_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	result := validateScenarioFile(path)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "failed to parse scenario")
}
