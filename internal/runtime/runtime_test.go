package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/aramirez087/tuitbot/internal/gateway"
	"github.com/aramirez087/tuitbot/internal/policy"
	"github.com/aramirez087/tuitbot/internal/store/memory"
	"github.com/aramirez087/tuitbot/internal/workflow"
)

func TestRunAcquiresAndReleasesProcessLock(t *testing.T) {
	store := memory.New()
	client := &fakePoster{}
	gw := gateway.New(testGatewayDeps(client, store, 0))

	deps := Deps{
		Store:   store,
		Gateway: gw,
		Mode:    policy.Autopilot,
		Workflow: workflow.Deps{
			Toolkit: client,
			Store:   store,
			Mode:    policy.Autopilot,
		},
		Intervals: Intervals{ApprovalPoster: time.Hour},
	}
	rt := New(deps, "owner-1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	// Give the run loop a moment to acquire the lock before tearing down.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not shut down within the grace period")
	}

	if err := store.AcquireProcessLock(t.Context(), "owner-2"); err != nil {
		t.Fatalf("expected the lock to be released, AcquireProcessLock failed: %v", err)
	}
}

func TestTickRunsOnlyNamedTaskAndReleasesLock(t *testing.T) {
	store := memory.New()
	client := &fakePoster{}
	gw := gateway.New(testGatewayDeps(client, store, 0))

	deps := Deps{
		Store:   store,
		Gateway: gw,
		Mode:    policy.Autopilot,
		Workflow: workflow.Deps{
			Toolkit: client,
			Store:   store,
			Mode:    policy.Autopilot,
		},
	}
	rt := New(deps, "owner-1")

	if err := rt.Tick(t.Context(), []string{"retention_sweep"}, true); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if err := store.AcquireProcessLock(t.Context(), "owner-2"); err != nil {
		t.Fatalf("expected the lock released after Tick, AcquireProcessLock failed: %v", err)
	}
}

func TestTickFailsFastOnLockAlreadyHeld(t *testing.T) {
	store := memory.New()
	if err := store.AcquireProcessLock(t.Context(), "someone-else"); err != nil {
		t.Fatalf("AcquireProcessLock: %v", err)
	}

	client := &fakePoster{}
	gw := gateway.New(testGatewayDeps(client, store, 0))
	deps := Deps{
		Store:   store,
		Gateway: gw,
		Mode:    policy.Autopilot,
		Workflow: workflow.Deps{Toolkit: client, Store: store, Mode: policy.Autopilot},
	}
	rt := New(deps, "owner-1")

	if err := rt.Tick(t.Context(), nil, true); err == nil {
		t.Fatal("expected Tick to fail acquiring an already-held process lock")
	}
}

func TestRunRefusesWhenLockHeldByAnotherOwner(t *testing.T) {
	store := memory.New()
	if err := store.AcquireProcessLock(t.Context(), "someone-else"); err != nil {
		t.Fatalf("AcquireProcessLock: %v", err)
	}

	client := &fakePoster{}
	gw := gateway.New(testGatewayDeps(client, store, 0))
	deps := Deps{
		Store:   store,
		Gateway: gw,
		Mode:    policy.Autopilot,
		Workflow: workflow.Deps{Toolkit: client, Store: store, Mode: policy.Autopilot},
	}
	rt := New(deps, "owner-1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rt.Run(ctx); err == nil {
		t.Fatal("expected Run to fail acquiring an already-held process lock")
	}
}
