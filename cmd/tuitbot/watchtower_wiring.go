package main

import (
	"context"

	"github.com/aramirez087/tuitbot/internal/runtime"
	"github.com/aramirez087/tuitbot/internal/watchtower"
)

func watchtowerScanner(a *app) runtime.SourceScanner {
	if !a.cfg.Features.Watchtower {
		return nil
	}
	return func(ctx context.Context) error {
		return watchtower.ScanAll(ctx, a.watchtowerDeps, newContentProvider)
	}
}

func watchtowerSeedRunner(a *app) runtime.SeedRunner {
	if !a.cfg.Features.Watchtower {
		return nil
	}
	return func(ctx context.Context) error {
		return watchtower.RunSeedWorker(ctx, a.watchtowerDeps)
	}
}
