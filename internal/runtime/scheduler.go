package runtime

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/aramirez087/tuitbot/internal/scoring"
)

// scheduledTask is one entry in the runtime's task table. respectSchedule
// marks a task that honors active hours: woken outside the active-hours
// window, it sleeps until the window reopens instead of running.
type scheduledTask struct {
	name            string
	enabled         bool
	interval        time.Duration
	respectSchedule bool
	run             func(ctx context.Context) error
}

// buildTasks assembles the fixed task table from Deps. A zero interval falls
// back to one minute (see jittered); token refresh runs here every minute
// and checks each account's expiry itself.
func (r *Runtime) buildTasks() []scheduledTask {
	d := r.deps
	return []scheduledTask{
		{
			name: "discovery", enabled: d.Features.Discovery, interval: d.Intervals.Discovery,
			respectSchedule: true, run: r.taskDiscovery,
		},
		{
			name: "mentions", enabled: d.Features.Mentions, interval: d.Intervals.Mentions,
			respectSchedule: true, run: r.taskMentions,
		},
		{
			name: "target_monitor", enabled: d.Features.TargetMonitor, interval: d.Intervals.TargetMonitor,
			respectSchedule: true, run: r.taskTargetMonitor,
		},
		{
			name: "content_posting", enabled: d.Features.ContentPosting, interval: d.Intervals.ContentPosting,
			respectSchedule: true, run: r.taskContentPosting,
		},
		{
			name: "thread_publishing", enabled: d.Features.ThreadPublishing, interval: d.Intervals.ThreadPublishing,
			respectSchedule: true, run: r.taskThreadPublishing,
		},
		{
			name: "analytics", enabled: d.Features.Analytics, interval: d.Intervals.Analytics,
			run: r.taskAnalytics,
		},
		{
			name: "approval_poster", enabled: true, interval: d.Intervals.ApprovalPoster,
			run: r.taskApprovalPoster,
		},
		{
			name: "watchtower_scan", enabled: d.Features.Watchtower && d.ScanSources != nil, interval: d.Intervals.WatchtowerScan,
			run: r.taskWatchtowerScan,
		},
		{
			name: "seed_worker", enabled: d.RunSeedWorker != nil, interval: d.Intervals.SeedWorker,
			run: r.taskSeedWorker,
		},
		{
			name: "token_refresh", enabled: d.RefreshToken != nil, interval: 1 * time.Minute,
			run: r.taskTokenRefresh,
		},
		{
			name: "retention_sweep", enabled: true, interval: r.retentionInterval(),
			run: r.taskRetentionSweep,
		},
	}
}

func (r *Runtime) retentionInterval() time.Duration {
	if r.deps.Intervals.Retention > 0 {
		return r.deps.Intervals.Retention
	}
	return 24 * time.Hour
}

// runTask drives one task's jittered sleep/run loop until ctx is cancelled.
// Every task is cooperative: it runs to completion (sequential work inside
// one tick) then sleeps again, never blocking another task's goroutine.
func (r *Runtime) runTask(ctx context.Context, t scheduledTask) {
	for {
		if t.respectSchedule {
			if wait, ok := r.activeHoursWait(); ok {
				slog.Info("runtime: task sleeping for active-hours window", "task", t.name, "wait", wait)
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
				continue
			}
		}

		started := time.Now()
		err := t.run(ctx)
		r.recordTaskRun(t.name, started, err)
		if err != nil {
			slog.Error("runtime: task failed", "task", t.name, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(jittered(t.interval)):
		}
	}
}

// activeHoursWait reports, if the scheduling window is configured and we are
// currently outside it, how long to sleep before the next check.
func (r *Runtime) activeHoursWait() (time.Duration, bool) {
	s := r.deps.Scheduling
	if s.ActiveHoursStart == "" || s.ActiveHoursEnd == "" {
		return 0, false
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}

	until, outside := scoring.ActiveHoursWindow(time.Now().UTC(), s.ActiveHoursStart, s.ActiveHoursEnd, *loc)
	if !outside {
		return 0, false
	}
	return time.Until(until), true
}

// jittered applies ±20% jitter to a sleep interval. A zero or negative
// interval falls back to one minute so a misconfigured task still makes
// forward progress instead of busy-looping.
func jittered(interval time.Duration) time.Duration {
	if interval <= 0 {
		interval = time.Minute
	}
	spread := float64(interval) * 0.2
	delta := (rand.Float64()*2 - 1) * spread
	return interval + time.Duration(delta)
}
