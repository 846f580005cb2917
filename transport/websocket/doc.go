// Package websocket streams simulation snapshots to renderers.
//
// A renderer connects to /ws?simulation=<id> and receives one JSON Message per
// frame. Every step, reset and background tick of that simulation produces a
// Message with event "snapshot" carrying the full engine.Snapshot. Incoming
// frames are read only to keep the connection alive.
//
// Architecture:
//
// A central Hub owns the clients grouped by simulation ID. Each connection has
// a read pump and a write pump goroutine. Hub implements
// service.SnapshotPublisher, and Publish never blocks the simulation: when the
// hub or a client falls behind, snapshots are dropped and slow clients are
// disconnected.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//
//	svc := service.NewSimulationService(runs, scenarios, service.WithPublisher(hub))
package websocket
