// Package session keeps the live simulation runs of a server process.
//
// The session package implements:
//   - Thread-safe run storage and retrieval
//   - Short run ID generation
//   - Expiry of idle runs
//
// Runs live in memory only. Each Run wraps one engine.Simulation built from a
// scenario with the engine options given to NewManager, so every run shares the
// same logger and meter.
//
// Usage:
//
//	manager := session.NewManager(engine.WithLogger(logger))
//
//	run, err := manager.Create("", "default", engine.DefaultScenario())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	run, err = manager.Get(run.ID)
package session
