package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/campus-charging-sim/campus/engine"
	"github.com/wricardo/campus-charging-sim/campus/layout"
)

// loadScenario reads path, or returns the default scenario when path is empty
func loadScenario(path string) (*engine.Scenario, error) {
	if path == "" {
		return engine.DefaultScenario(), nil
	}
	return engine.LoadScenario(path)
}

func applySeed(cmd *cli.Command, scenario *engine.Scenario) error {
	if !cmd.IsSet("seed") {
		return nil
	}
	seed := cmd.Int("seed")
	if seed < 0 {
		return fmt.Errorf("seed must not be negative, got %d", seed)
	}
	scenario.Seed = uint64(seed)
	return nil
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	out := cmd.Root().Writer

	scenario, err := loadScenario(cmd.String("scenario"))
	if err != nil {
		return err
	}
	if err := applySeed(cmd, scenario); err != nil {
		return err
	}

	ticks := int(cmd.Int("ticks"))
	if ticks <= 0 {
		return fmt.Errorf("ticks must be positive, got %d", ticks)
	}

	level, err := zerolog.ParseLevel(cmd.String("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	sim, err := engine.NewFromScenario(scenario, engine.WithLogger(log))
	if err != nil {
		return err
	}

	ran, err := sim.Run(ctx, ticks)
	if err != nil {
		fmt.Fprintf(out, "Interrupted after %d ticks\n", ran)
	}

	snap := sim.Snapshot()
	if cmd.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(snap); encErr != nil {
			return encErr
		}
		return err
	}

	writeSummary(out, scenario, snap)
	return err
}

// writeSummary prints the final counters of a run
func writeSummary(w io.Writer, scenario *engine.Scenario, snap engine.Snapshot) {
	st := snap.Stats
	fmt.Fprintf(w, "Scenario: %s (seed %d)\n", scenario.Name, scenario.Seed)
	fmt.Fprintf(w, "Ticks: %d\n", snap.Tick)
	fmt.Fprintf(w, "Vehicles: %d spawned, %d exited, %d on campus\n", st.Spawned, st.Exited, len(snap.Vehicles))
	fmt.Fprintf(w, "Spot binding misses: %d\n", st.SpotBindingMisses)
	fmt.Fprintf(w, "Assignments: %d (%d dropped)\n", st.Assignments, st.TasksDropped)
	fmt.Fprintf(w, "Charges completed: %d\n", st.ChargesCompleted)
	fmt.Fprintf(w, "Energy delivered: %.2f\n", st.EnergyDelivered)
	fmt.Fprintf(w, "Station dispatches: %d\n", st.StationDispatches)

	occupied := 0
	for _, s := range snap.Spots {
		if s.Occupied {
			occupied++
		}
	}
	fmt.Fprintf(w, "Parking: %d/%d occupied\n", occupied, len(snap.Spots))

	fmt.Fprintln(w, "Robots:")
	for _, r := range snap.Robots {
		fmt.Fprintf(w, "  #%d %-16s (%d,%d) battery %.1f/%.1f\n",
			r.ID, r.Status, r.Position.X, r.Position.Y, r.Battery, r.MaxBattery)
	}
}

func layoutAction(ctx context.Context, cmd *cli.Command) error {
	out := cmd.Root().Writer

	scenario, err := loadScenario(cmd.Args().First())
	if err != nil {
		return err
	}
	if err := applySeed(cmd, scenario); err != nil {
		return err
	}

	campus, err := engine.GenerateLayout(scenario)
	if err != nil {
		return err
	}

	w, h := campus.Size()
	fmt.Fprintf(out, "%s: %dx%d, %d spots, %d gates, %d stations\n",
		scenario.Name, w, h, len(campus.ParkingSpots()), len(campus.Gates()), len(campus.StationPositions()))
	for _, row := range campus.Render() {
		fmt.Fprintln(out, row)
	}
	return nil
}

// ValidationResult captures the outcome of validating a single scenario file.
// Warnings do not make a file invalid.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
}

// validateScenarioFile loads a scenario, generates its campus and checks the
// robot roster against the generated geometry
func validateScenarioFile(path string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(path),
		Valid: true,
	}

	scenario, err := engine.LoadScenario(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	campus, err := engine.GenerateLayout(scenario)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("layout generation failed: %v", err))
		return result
	}

	result.Warnings = append(result.Warnings, layoutWarnings(scenario, campus)...)
	return result
}

func layoutWarnings(scenario *engine.Scenario, campus *layout.Layout) []string {
	var warnings []string

	if got := len(campus.StationPositions()); got < scenario.Stations {
		warnings = append(warnings, fmt.Sprintf("only %d of %d stations could be placed", got, scenario.Stations))
	}
	if len(campus.ParkingSpots()) == 0 {
		warnings = append(warnings, "campus has no parking spots")
	}
	if len(campus.Gates()) == 0 {
		warnings = append(warnings, "campus has no gates, no vehicles will spawn")
	}
	if len(scenario.Robots) == 0 {
		warnings = append(warnings, "scenario has no robots, no vehicle will be charged")
	}

	for _, rc := range scenario.Robots {
		spec := rc.Spec()
		if !campus.Passable(spec.Position) {
			warnings = append(warnings, fmt.Sprintf("robot %d starts on a %s cell at (%d,%d)",
				rc.ID, campus.CellKind(spec.Position), spec.Position.X, spec.Position.Y))
		}
		if campus.CellKind(spec.HomeStation) != layout.Charger {
			warnings = append(warnings, fmt.Sprintf("robot %d home station (%d,%d) is not a charger cell",
				rc.ID, spec.HomeStation.X, spec.HomeStation.Y))
		}
	}
	return warnings
}

func validateAction(ctx context.Context, cmd *cli.Command) error {
	out := cmd.Root().Writer

	files := cmd.Args().Slice()
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(cmd.String("dir"), "*.json"))
		if err != nil {
			return err
		}
		sort.Strings(matches)
		files = matches
	}
	if len(files) == 0 {
		return fmt.Errorf("no scenario files found in %s", cmd.String("dir"))
	}

	invalid := 0
	for _, file := range files {
		result := validateScenarioFile(file)
		if result.Valid {
			fmt.Fprintf(out, "OK    %s\n", result.File)
		} else {
			invalid++
			fmt.Fprintf(out, "FAIL  %s\n", result.File)
		}
		for _, e := range result.Errors {
			fmt.Fprintf(out, "      error: %s\n", e)
		}
		for _, w := range result.Warnings {
			fmt.Fprintf(out, "      warning: %s\n", w)
		}
	}

	fmt.Fprintf(out, "\n%d files, %d invalid\n", len(files), invalid)
	if invalid > 0 {
		return fmt.Errorf("%d invalid scenario files", invalid)
	}
	return nil
}
