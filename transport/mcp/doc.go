// Package mcp provides a Model Context Protocol server for the campus charging simulator.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Tool definitions that proxy to the REST API
//   - Plain text formatting of runs, snapshots and campus geometry
//
// MCP Tools:
//   - list_scenarios: List scenario files
//   - create_simulation: Create a run from a scenario
//   - list_simulations: List live runs
//   - get_simulation: Run details and counters
//   - delete_simulation: Stop and remove a run
//   - step_simulation: Advance a run by N ticks
//   - reset_simulation: Rewind a run to tick 0
//   - start_simulation / stop_simulation: Background ticking
//   - get_snapshot: Vehicles, robots and parking occupancy
//   - describe_campus: Geometry plus an ASCII grid
//
// The client holds no simulation state. Every tool call becomes one HTTP
// request against the API server, so a stdio MCP process can drive a server
// started elsewhere or one started in-process on a random port.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
