package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/campus-charging-sim/campus/engine"
	"github.com/wricardo/campus-charging-sim/campus/service"
)

// maxListedVehicles bounds the vehicle table in snapshot output
const maxListedVehicles = 15

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Campus Charging Simulator",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Campus Charging Simulator - MCP Interface

This is a thin client that proxies all requests to the REST API server.

MODEL:
Vehicles enter a rectangular campus through gates, drive to a parking spot and
wait there until they reach their target battery. Mobile charging robots drive
to parked vehicles, transfer energy, and return to charging stations when
their own battery runs low. A scheduler assigns robots to vehicles every tick.

AVAILABLE TOOLS:
- list_scenarios: List scenario files the server can run
- create_simulation: Start a new simulation run from a scenario
- list_simulations: List live runs with their stats
- get_simulation: Get run details and counters
- step_simulation: Advance a run by N ticks (capped server side)
- reset_simulation: Rewind a run to tick 0 with its original seed
- start_simulation: Tick a run in the background
- stop_simulation: Stop background ticking
- get_snapshot: Vehicles, robots and spot occupancy at the current tick
- describe_campus: Campus geometry with an ASCII rendering of the grid
- delete_simulation: Stop and remove a run

Runs are deterministic: the same scenario and seed always produce the same history.`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	simulationID := map[string]interface{}{
		"type":        "string",
		"description": "Simulation run ID",
	}

	// Scenarios
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_scenarios",
		Description: "List available simulation scenarios",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListScenarios)

	// Run management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_simulation",
		Description: "Create a new simulation run with optional scenario selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"scenario_id": map[string]interface{}{
					"type":        "string",
					"description": "Scenario to run (use list_scenarios to see options; empty for the default)",
				},
			},
		},
	}, c.handleCreateSimulation)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_simulations",
		Description: "List all live simulation runs",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSimulations)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_simulation",
		Description: "Get details and counters for a simulation run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"simulation_id": simulationID,
			},
			Required: []string{"simulation_id"},
		},
	}, c.handleGetSimulation)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "delete_simulation",
		Description: "Stop and remove a simulation run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"simulation_id": simulationID,
			},
			Required: []string{"simulation_id"},
		},
	}, c.handleDeleteSimulation)

	// Clock
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "step_simulation",
		Description: "Advance a simulation run by a number of ticks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"simulation_id": simulationID,
				"ticks": map[string]interface{}{
					"type":        "integer",
					"description": "Number of ticks to advance (default 1)",
					"minimum":     1,
				},
			},
			Required: []string{"simulation_id"},
		},
	}, c.handleStepSimulation)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_simulation",
		Description: "Rewind a simulation run to tick 0",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"simulation_id": simulationID,
			},
			Required: []string{"simulation_id"},
		},
	}, c.handleResetSimulation)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_simulation",
		Description: "Tick a simulation run in the background",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"simulation_id": simulationID,
				"interval_ms": map[string]interface{}{
					"type":        "integer",
					"description": "Milliseconds between ticks (default 200)",
				},
			},
			Required: []string{"simulation_id"},
		},
	}, c.handleStartSimulation)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "stop_simulation",
		Description: "Stop background ticking of a simulation run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"simulation_id": simulationID,
			},
			Required: []string{"simulation_id"},
		},
	}, c.handleStopSimulation)

	// State
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_snapshot",
		Description: "Get vehicles, robots and parking occupancy at the current tick",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"simulation_id": simulationID,
			},
			Required: []string{"simulation_id"},
		},
	}, c.handleGetSnapshot)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_campus",
		Description: "Describe the campus geometry and render the grid as ASCII",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"simulation_id": simulationID,
			},
			Required: []string{"simulation_id"},
		},
	}, c.handleDescribeCampus)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiCall makes a REST API call
func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func simulationPath(args map[string]interface{}, suffix string) (string, error) {
	id, _ := args["simulation_id"].(string)
	if id == "" {
		return "", fmt.Errorf("simulation_id is required")
	}
	return "/api/simulations/" + url.PathEscape(id) + suffix, nil
}

func (c *Client) handleListScenarios(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var scenarios []service.ScenarioInfo
	if err := c.apiCall(ctx, "GET", "/api/scenarios", nil, &scenarios); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Available Scenarios (%d):\n\n", len(scenarios))
	for _, s := range scenarios {
		fmt.Fprintf(&b, "- %s: %s (%dx%d, %d gates, %d robots, policy %s)\n",
			s.ScenarioID, s.Name, s.GridWidth, s.GridHeight, s.Gates, s.Robots, s.Policy)
		if s.Description != "" {
			fmt.Fprintf(&b, "  %s\n", s.Description)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleCreateSimulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	scenarioID, _ := args["scenario_id"].(string)

	body := map[string]string{}
	if scenarioID != "" {
		body["scenario_id"] = scenarioID
	}

	var info service.RunInfo
	if err := c.apiCall(ctx, "POST", "/api/simulations", body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created simulation: %s\nScenario: %s\n", info.ID, info.ScenarioID)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSimulations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count       int               `json:"count"`
		Simulations []service.RunInfo `json:"simulations"`
	}

	if err := c.apiCall(ctx, "GET", "/api/simulations", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Simulations (%d):\n\n", response.Count)
	for i := range response.Simulations {
		result += formatRunInfo(&response.Simulations[i]) + "\n"
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSimulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := simulationPath(arguments(request), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var info service.RunInfo
	if err := c.apiCall(ctx, "GET", path, nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRunInfo(&info)), nil
}

func (c *Client) handleDeleteSimulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := simulationPath(arguments(request), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response map[string]string
	if err := c.apiCall(ctx, "DELETE", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(response["message"]), nil
}

func (c *Client) handleStepSimulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := simulationPath(args, "/step")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ticks := 1
	if t, ok := args["ticks"].(float64); ok {
		ticks = int(t)
	}
	if ticks <= 0 {
		return mcp.NewToolResultError("ticks must be positive"), nil
	}

	var result service.StepResult
	if err := c.apiCall(ctx, "POST", path, map[string]int{"ticks": ticks}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatStepResult(&result)), nil
}

func (c *Client) handleResetSimulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := simulationPath(arguments(request), "/reset")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response struct {
		Message  string          `json:"message"`
		Snapshot engine.Snapshot `json:"snapshot"`
	}
	if err := c.apiCall(ctx, "POST", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := response.Message + "\n\n" + formatSnapshot(&response.Snapshot)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleStartSimulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := simulationPath(args, "/start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]int{}
	if ms, ok := args["interval_ms"].(float64); ok {
		body["interval_ms"] = int(ms)
	}

	var info service.RunInfo
	if err := c.apiCall(ctx, "POST", path, body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Simulation %s running every %dms\n", info.ID, info.IntervalMS)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleStopSimulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := simulationPath(arguments(request), "/stop")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var info service.RunInfo
	if err := c.apiCall(ctx, "POST", path, nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Simulation %s stopped at tick %d\n", info.ID, info.Tick)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := simulationPath(arguments(request), "/snapshot")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var snap engine.Snapshot
	if err := c.apiCall(ctx, "GET", path, nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSnapshot(&snap)), nil
}

func (c *Client) handleDescribeCampus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := simulationPath(arguments(request), "/campus")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var info service.CampusInfo
	if err := c.apiCall(ctx, "GET", path, nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatCampus(&info)), nil
}

// Formatting

func formatStats(st engine.Stats) string {
	return fmt.Sprintf("Spawned: %d | Exited: %d | Charges: %d | Energy: %.1f | Spot misses: %d | Dropped tasks: %d",
		st.Spawned, st.Exited, st.ChargesCompleted, st.EnergyDelivered, st.SpotBindingMisses, st.TasksDropped)
}

func formatRunInfo(info *service.RunInfo) string {
	state := "paused"
	if info.Running {
		state = fmt.Sprintf("running every %dms", info.IntervalMS)
	}
	return fmt.Sprintf("ID: %s\nScenario: %s (%s)\nTick: %d (%s)\nVehicles: %d | Robots: %d\n%s\n",
		info.ID, info.ScenarioID, info.Name, info.Tick, state, info.Vehicles, info.Robots, formatStats(info.Stats))
}

func formatSnapshot(snap *engine.Snapshot) string {
	var b strings.Builder

	occupied := 0
	for _, spot := range snap.Spots {
		if spot.Occupied {
			occupied++
		}
	}

	fmt.Fprintf(&b, "Tick: %d\n", snap.Tick)
	fmt.Fprintf(&b, "Parking: %d/%d occupied\n", occupied, len(snap.Spots))
	fmt.Fprintf(&b, "%s\n", formatStats(snap.Stats))

	fmt.Fprintf(&b, "\nRobots (%d):\n", len(snap.Robots))
	for _, r := range snap.Robots {
		target := ""
		switch {
		case r.TargetVehicle != 0:
			target = fmt.Sprintf(" -> vehicle %d", r.TargetVehicle)
		case r.TargetStation != nil:
			target = fmt.Sprintf(" -> station (%d,%d)", r.TargetStation.X, r.TargetStation.Y)
		}
		fmt.Fprintf(&b, "  #%d %s at (%d,%d) battery %.1f/%.1f%s\n",
			r.ID, r.Status, r.Position.X, r.Position.Y, r.Battery, r.MaxBattery, target)
	}

	fmt.Fprintf(&b, "\nVehicles (%d):\n", len(snap.Vehicles))
	for i, v := range snap.Vehicles {
		if i == maxListedVehicles {
			fmt.Fprintf(&b, "  ... and %d more\n", len(snap.Vehicles)-maxListedVehicles)
			break
		}
		fmt.Fprintf(&b, "  #%d %s at (%d,%d) battery %.1f/%.1f",
			v.ID, v.State, v.Position.X, v.Position.Y, v.CurrentBattery, v.TargetBattery)
		if v.ChargingStatus != "" {
			fmt.Fprintf(&b, " [%s]", v.ChargingStatus)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func formatStepResult(result *service.StepResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Advanced %d ticks, now at tick %d\n", result.Ticks, result.Time)
	if result.Truncated {
		fmt.Fprintf(&b, "Requested %d ticks, capped at %d per call\n", result.Requested, result.Limit)
	}

	var spawned, exited, charges int
	var energy float64
	for _, r := range result.Reports {
		spawned += len(r.Spawned)
		exited += len(r.Exited)
		charges += len(r.ChargesCompleted)
		energy += r.EnergyDelivered
	}
	if len(result.Reports) > 0 {
		fmt.Fprintf(&b, "Last %d ticks: %d spawned, %d exited, %d charges completed, %.1f energy delivered\n",
			len(result.Reports), spawned, exited, charges, energy)
	}

	b.WriteString("\n")
	b.WriteString(formatSnapshot(&result.Snapshot))
	return b.String()
}

func formatCampus(info *service.CampusInfo) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Campus: %dx%d\n", info.Width, info.Height)
	fmt.Fprintf(&b, "Ring road: offset %d, width %d\n", info.RoadOffset, info.RoadWidth)
	fmt.Fprintf(&b, "Parking spots: %d\n", info.ParkingSpots)

	fmt.Fprintf(&b, "Gates (%d):\n", len(info.Gates))
	for _, g := range info.Gates {
		fmt.Fprintf(&b, "  %s (%d,%d)-(%d,%d)\n", g.Edge, g.X1, g.Y1, g.X2, g.Y2)
	}

	fmt.Fprintf(&b, "Stations (%d):\n", len(info.Stations))
	for _, s := range info.Stations {
		fmt.Fprintf(&b, "  (%d,%d)\n", s.X, s.Y)
	}

	if len(info.Rows) > 0 {
		b.WriteString("\nGrid:\n")
		for _, row := range info.Rows {
			b.WriteString(row)
			b.WriteString("\n")
		}
	}

	return b.String()
}
