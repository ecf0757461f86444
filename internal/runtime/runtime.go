// Package runtime implements the automation runtime: a set of periodic
// cooperative tasks — discovery, mentions, target monitoring, content
// posting, thread publishing, analytics, token refresh, the posting queue,
// the approval poster, the watchtower scanner, the seed worker, and the
// retention sweep — sharing one scheduler, one shutdown sequence, and one
// process lock. Each task runs in its own goroutine on a fixed interval with
// jitter (a plain time.After sleep, no cron expressions), and a lock table
// with a heartbeat keeps a second runner out; the task table is built once
// at start and is not reloaded while running.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/gateway"
	"github.com/aramirez087/tuitbot/internal/policy"
	"github.com/aramirez087/tuitbot/internal/workflow"
)

// Intervals mirrors config.Intervals, kept here so runtime doesn't import
// internal/config (the dependency direction the internal/core package doc
// describes runs the other way).
type Intervals struct {
	Discovery        time.Duration
	Mentions         time.Duration
	TargetMonitor    time.Duration
	ContentPosting   time.Duration
	ThreadPublishing time.Duration
	Analytics        time.Duration
	ApprovalPoster   time.Duration
	WatchtowerScan   time.Duration
	SeedWorker       time.Duration
	Retention        time.Duration
}

// Features mirrors config.Features: which loops are enabled.
type Features struct {
	Discovery        bool
	Mentions         bool
	TargetMonitor    bool
	ContentPosting   bool
	ThreadPublishing bool
	Analytics        bool
	Watchtower       bool
}

// Scheduling is the active-hours window, mirrors config.Scheduling.
type Scheduling struct {
	ActiveHoursStart string
	ActiveHoursEnd   string
	Location         *time.Location
}

// TokenRefresher refreshes an account's OAuth token when it is within 5
// minutes of expiry. Supplied by internal/oauth; nil disables the loop
// (useful for tests and for `tuitbot test`, which never holds real tokens).
type TokenRefresher func(ctx context.Context, accountID string) error

// SourceScanner drives one watchtower pass over every registered content
// source. Supplied by internal/watchtower; nil disables the loop.
type SourceScanner func(ctx context.Context) error

// SeedRunner drives one seed-worker pass over pending content nodes.
// Supplied by internal/watchtower; nil disables the loop.
type SeedRunner func(ctx context.Context) error

// Deps bundles everything the runtime's tasks need.
type Deps struct {
	Store    core.Storer
	Workflow workflow.Deps
	Gateway  *gateway.Gateway

	Mode           policy.OperatingMode
	Intervals      Intervals
	Features       Features
	Scheduling     Scheduling
	RetentionAfter time.Duration // telemetry rows older than this are pruned (audit rows are never pruned)

	RefreshToken   TokenRefresher
	ScanSources    SourceScanner
	RunSeedWorker  SeedRunner

	// DiscoveryQuery/TargetQueries build the search queries each
	// discovery-family task hands to workflow.Discover for a given account.
	DiscoveryQuery func(acct core.Account) string
	TargetQueries  func(acct core.Account) []string
}

// Runtime owns the task scheduler, the posting queue, and the shared
// shutdown sequence. One Runtime per process; `tuitbot run` constructs and
// starts it, `tuitbot tick` drives a subset of its tasks once.
type Runtime struct {
	deps Deps

	mu      sync.RWMutex
	health  Health
	owner   string
	pq      *postingQueue
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// New builds a Runtime. owner identifies this process instance in the
// process-lock table — only one runner may hold the lock at a time.
func New(deps Deps, owner string) *Runtime {
	return &Runtime{
		deps:  deps,
		owner: owner,
		pq:    newPostingQueue(deps),
		health: Health{
			Accounts: map[string]AccountHealth{},
			Tasks:    map[string]TaskHealth{},
		},
	}
}

// Run acquires the process lock, starts every enabled task loop plus the
// posting queue, and blocks until ctx is cancelled. On cancellation it runs
// the shutdown sequence: stop accepting new work, wait up to 10s for
// in-flight toolkit calls, release the process lock.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.deps.Store.AcquireProcessLock(ctx, r.owner); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	defer cancel()

	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())
	defer stopHeartbeat()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.heartbeatLoop(heartbeatCtx)
	}()

	for _, t := range r.buildTasks() {
		if !t.enabled {
			continue
		}
		r.wg.Add(1)
		go func(t scheduledTask) {
			defer r.wg.Done()
			r.runTask(runCtx, t)
		}(t)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.pq.run(runCtx, r)
	}()

	<-ctx.Done()
	slog.Info("runtime: shutdown signal received, draining in-flight work")

	cancel()
	stopHeartbeat()

	drained := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(10 * time.Second):
		slog.Warn("runtime: shutdown grace period elapsed with tasks still in flight")
	}

	releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer releaseCancel()
	if err := r.deps.Store.ReleaseProcessLock(releaseCtx, r.owner); err != nil {
		slog.Error("runtime: release process lock failed", "error", err)
		return err
	}

	return nil
}

// heartbeatLoop renews the process lock every 15s so a crashed runner's lock
// goes stale (and is reclaimable) within the storage layer's staleness window.
func (r *Runtime) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.deps.Store.Heartbeat(ctx, r.owner); err != nil {
				slog.Error("runtime: heartbeat failed", "error", err)
			}
		}
	}
}

// Signal wakes the posting queue; called by the content-posting and
// thread-publishing tasks once they queue a draft, so the queue picks it up
// without waiting for its 2s fallback poll.
func (r *Runtime) Signal() {
	r.pq.signal()
}

// Tick runs each enabled task exactly once and drains the posting queue
// afterward, backing `tuitbot tick`. names, if non-empty,
// restricts the run to those task names; ignoreSchedule skips the
// active-hours check a normal run would otherwise honor. It acquires the
// process lock for the duration of the run and releases it before
// returning, same as Run's shutdown sequence but synchronous.
func (r *Runtime) Tick(ctx context.Context, names []string, ignoreSchedule bool) error {
	if err := r.deps.Store.AcquireProcessLock(ctx, r.owner); err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.deps.Store.ReleaseProcessLock(releaseCtx, r.owner); err != nil {
			slog.Error("runtime: release process lock failed", "error", err)
		}
	}()

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	for _, t := range r.buildTasks() {
		if !t.enabled {
			continue
		}
		if len(want) > 0 && !want[t.name] {
			continue
		}
		if t.respectSchedule && !ignoreSchedule {
			if _, outside := r.activeHoursWait(); outside {
				slog.Info("runtime: tick skipping task outside active hours", "task", t.name)
				continue
			}
		}

		started := time.Now()
		err := t.run(ctx)
		r.recordTaskRun(t.name, started, err)
		if err != nil {
			return fmt.Errorf("tick task %q: %w", t.name, err)
		}
	}

	r.pq.drain(ctx, r)
	return nil
}
