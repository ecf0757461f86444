package watchtower

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLocalFSScanListsRegularFilesOnly(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.md"), []byte("a"), 0o644); err != nil {
		t.Fatalf("WriteFile a.md: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "b.md"), []byte("b"), 0o644); err != nil {
		t.Fatalf("WriteFile sub/b.md: %v", err)
	}

	fs := LocalFS{Root: root}
	files, err := fs.Scan(t.Context())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("len(files) = %d, want 2: %v", len(files), files)
	}

	seen := map[string]bool{}
	for _, f := range files {
		seen[f.RelativePath] = true
	}
	if !seen["a.md"] || !seen[filepath.Join("sub", "b.md")] {
		t.Fatalf("unexpected relative paths: %v", files)
	}
}

func TestLocalFSReadReturnsFileBytes(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.md"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fs := LocalFS{Root: root}
	data, err := fs.Read(t.Context(), "a.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("data = %q, want %q", data, "hello")
	}
}

func TestWatcherCooldownSuppressesRecentlyTouchedPaths(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.fsw.Close()

	if w.onCooldown("a.md") {
		t.Fatalf("expected no cooldown before Touch")
	}
	w.Touch("a.md")
	if !w.onCooldown("a.md") {
		t.Fatalf("expected cooldown immediately after Touch")
	}
}

func TestWatcherCooldownExpires(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.fsw.Close()

	w.mu.Lock()
	w.cooldown["a.md"] = time.Now().Add(-time.Second)
	w.mu.Unlock()

	if w.onCooldown("a.md") {
		t.Fatalf("expected cooldown to have expired")
	}
}

func TestWatcherFlushInvokesOnScanWithPendingPaths(t *testing.T) {
	root := t.TempDir()
	var got []string
	w, err := NewWatcher(root, func(_ context.Context, changed []string) {
		got = changed
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.fsw.Close()

	w.markPending("a.md")
	w.markPending("b.md")
	w.flush(t.Context())

	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2: %v", len(got), got)
	}
	w.mu.Lock()
	pendingLen := len(w.pending)
	w.mu.Unlock()
	if pendingLen != 0 {
		t.Fatalf("expected pending to be cleared after flush")
	}
}
