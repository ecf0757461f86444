package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aramirez087/tuitbot/internal/oauth"
	"github.com/aramirez087/tuitbot/internal/runtime"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start all enabled loops and run until signalled",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), flagConfigPath, false)
		if err != nil {
			return err
		}
		defer a.Close()

		rt := runtime.New(buildRuntimeDeps(a), processOwner())
		if err := rt.Run(cmd.Context()); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		return nil
	},
}

// processOwner identifies this process instance in the store's process-lock
// table; unique per invocation so two `tuitbot run` processes never collide
// under the same hostname.
func processOwner() string {
	host, _ := os.Hostname()
	return host + "-" + uuid.NewString()
}

func buildRuntimeDeps(a *app) runtime.Deps {
	cfg := a.cfg
	return runtime.Deps{
		Store:    a.store,
		Workflow: a.workflowDeps,
		Gateway:  a.gateway,
		Mode:     a.mode,
		Intervals: runtime.Intervals{
			Discovery:        cfg.Intervals.Discovery,
			Mentions:         cfg.Intervals.Mentions,
			TargetMonitor:    cfg.Intervals.TargetMonitor,
			ContentPosting:   cfg.Intervals.ContentPosting,
			ThreadPublishing: cfg.Intervals.ThreadPublishing,
			Analytics:        cfg.Intervals.Analytics,
			ApprovalPoster:   cfg.Intervals.ApprovalPoster,
			WatchtowerScan:   cfg.Intervals.WatchtowerScan,
			SeedWorker:       cfg.Intervals.SeedWorker,
			Retention:        cfg.Intervals.Retention,
		},
		Features: runtime.Features{
			Discovery:        cfg.Features.Discovery,
			Mentions:         cfg.Features.Mentions,
			TargetMonitor:    cfg.Features.TargetMonitor,
			ContentPosting:   cfg.Features.ContentPosting,
			ThreadPublishing: cfg.Features.ThreadPublishing,
			Analytics:        cfg.Features.Analytics,
			Watchtower:       cfg.Features.Watchtower,
		},
		Scheduling: runtime.Scheduling{
			ActiveHoursStart: activeHoursStart(cfg.Scheduling.ActiveHours),
			ActiveHoursEnd:   activeHoursEnd(cfg.Scheduling.ActiveHours),
			Location:         schedulingLocation(cfg.Scheduling.Timezone),
		},
		RefreshToken:   oauth.NewTokenRefresher(a.store, a.oauthFlow),
		ScanSources:    watchtowerScanner(a),
		RunSeedWorker:  watchtowerSeedRunner(a),
	}
}
