// Package config provides scenario files and server settings for the campus simulator.
//
// The config package handles:
//   - Loading scenarios from JSON files in a directory
//   - Scenario validation before load and save
//   - Default scenario selection
//   - Server settings with environment overrides
//
// Scenario Files:
//
// Each *.json file in the scenario directory holds one engine.Scenario. The
// file stem is the scenario ID used when creating a run, so configs/small.json
// is loaded with LoadScenario("small"). Invalid files are skipped by
// ListScenarios. The default scenario is default.json when present, otherwise
// the first valid file, otherwise engine.DefaultScenario.
//
// Settings:
//
// Load registers defaults for the host, port, scenario directory, log level,
// background tick interval and idle run expiry. Every key can be overridden by
// an environment variable with the CAMPUSSIM_ prefix (CAMPUSSIM_PORT,
// CAMPUSSIM_LOGLEVEL, CAMPUSSIM_MCP_ENABLED) or by an optional JSON file.
//
// Usage:
//
//	if err := config.Load(""); err != nil {
//		log.Fatal(err)
//	}
//
//	manager, err := config.NewManager(config.GetString(config.KeyScenariosDir))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	scenario, err := manager.LoadScenario("small")
package config
