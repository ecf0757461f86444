package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aramirez087/tuitbot/internal/runtime"
)

var (
	flagTickDryRun         bool
	flagTickLoops          string
	flagTickIgnoreSchedule bool
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run each enabled loop exactly once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), flagConfigPath, flagTickDryRun)
		if err != nil {
			return err
		}
		defer a.Close()

		deps := buildRuntimeDeps(a)

		rt := runtime.New(deps, processOwner())
		var names []string
		if flagTickLoops != "" {
			for _, n := range strings.Split(flagTickLoops, ",") {
				if n = strings.TrimSpace(n); n != "" {
					names = append(names, n)
				}
			}
		}

		if err := rt.Tick(cmd.Context(), names, flagTickIgnoreSchedule); err != nil {
			return fmt.Errorf("tick: %w", err)
		}
		return nil
	},
}

func init() {
	tickCmd.Flags().BoolVar(&flagTickDryRun, "dry-run", false, "dry-run every mutation instead of executing it")
	tickCmd.Flags().StringVar(&flagTickLoops, "loops", "", "comma-separated list of loop names to run (default: all enabled)")
	tickCmd.Flags().BoolVar(&flagTickIgnoreSchedule, "ignore-schedule", false, "run schedule-gated loops outside active hours")
}
