// Package service exposes simulation runs to the transports.
//
// SimulationService is the single entry point the REST API and the MCP tools
// use. It creates runs from scenarios, advances them on request or on a
// background ticker, and hands every new snapshot to an optional
// SnapshotPublisher such as the websocket hub.
//
// Concurrency:
//
// Each Run carries its own mutex. Step, Reset, Snapshot and the background
// ticker all take it before touching the simulation, so a run has exactly one
// writer at a time no matter how many requests arrive. Different runs advance
// independently.
package service
