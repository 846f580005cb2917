// Package api provides the HTTP REST API for the campus charging simulator.
//
// The api package implements:
//   - Simulation run management endpoints
//   - Clock control: single and multi-tick steps, reset, background start and stop
//   - Snapshot and campus geometry reads for renderers
//   - Scenario listing, loading and saving
//   - WebSocket upgrade for the live snapshot feed
//
// Endpoints:
//
// Simulations:
//   - POST   /api/simulations                 - Create a run ({"scenario_id": "small"}, empty for default)
//   - GET    /api/simulations                 - List runs (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET    /api/simulations/{id}            - Run info with stats
//   - DELETE /api/simulations/{id}            - Stop and remove a run
//
// Clock:
//   - POST /api/simulations/{id}/step         - Advance ({"ticks": 10} or ?ticks=10, default 1)
//   - POST /api/simulations/{id}/reset        - Rewind to tick 0 with the original seed
//   - POST /api/simulations/{id}/start        - Tick in the background ({"interval_ms": 200})
//   - POST /api/simulations/{id}/stop         - Stop background ticking
//
// State:
//   - GET /api/simulations/{id}/snapshot      - Vehicles, robots, spot occupancy and stats
//   - GET /api/simulations/{id}/campus        - Static geometry and rendered grid rows
//
// Scenarios:
//   - GET  /api/scenarios                     - List valid scenario files
//   - GET  /api/scenarios/{name}              - Scenario JSON
//   - POST /api/scenarios[?id=name]           - Validate and save a scenario
//
// Feed:
//   - GET /ws?simulation={id}                 - Snapshot stream, see package websocket
//
// Error Handling:
//
// Errors are returned as JSON with an HTTP status derived from the service
// error: 404 for unknown runs and scenarios, 400 for invalid input, 409 for
// start/stop conflicts.
//
//	{"error": "simulation not found: run not found"}
package api
