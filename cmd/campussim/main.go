// Command campussim runs campus charging scenarios from the terminal.
//
// It has three subcommands:
//   - run: tick a scenario headless and print the final counters
//   - layout: print the generated campus grid for a scenario
//   - validate: check scenario files and report layout warnings
//
// Scenario paths point at JSON files; with no path the built-in default
// campus is used.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

const appVersion = "1.0.0"

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "campussim",
		Usage:   "Campus charging robot simulator tools",
		Version: appVersion,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a scenario headless and print a summary",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "scenario",
						Aliases: []string{"s"},
						Usage:   "scenario JSON file (default campus when empty)",
					},
					&cli.IntFlag{
						Name:    "ticks",
						Aliases: []string{"n"},
						Value:   500,
						Usage:   "number of ticks to run",
					},
					&cli.IntFlag{
						Name:  "seed",
						Usage: "override the scenario seed",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "print the final snapshot as JSON",
					},
					&cli.StringFlag{
						Name:  "log-level",
						Value: "warn",
						Usage: "engine log level (trace, debug, info, warn, error)",
					},
				},
				Action: runAction,
			},
			{
				Name:      "layout",
				Usage:     "Print the generated campus grid",
				ArgsUsage: "[scenario.json]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "seed",
						Usage: "override the scenario seed",
					},
				},
				Action: layoutAction,
			},
			{
				Name:      "validate",
				Usage:     "Validate scenario files",
				ArgsUsage: "[file.json ...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Value: "configs",
						Usage: "directory to scan when no files are given",
					},
				},
				Action: validateAction,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
