package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestListBackupsEmptyDir(t *testing.T) {
	dir := t.TempDir()
	// Directory exists but holds nothing; listBackups must not error.
	if err := listBackups(time.Now(), dir); err != nil {
		t.Fatalf("listBackups: %v", err)
	}
}

func TestListBackupsMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	if err := listBackups(time.Now(), dir); err != nil {
		t.Fatalf("listBackups on missing dir should not error, got: %v", err)
	}
}

func TestPruneBackupsKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	names := []string{"a.tar.gz", "b.tar.gz", "c.tar.gz"}
	base := time.Now().Add(-time.Hour)
	for i, n := range names {
		path := filepath.Join(dir, n)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile(%s): %v", n, err)
		}
		modTime := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			t.Fatalf("Chtimes(%s): %v", n, err)
		}
	}

	if err := pruneBackups(time.Now(), dir, 1); err != nil {
		t.Fatalf("pruneBackups: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 surviving backup, got %d", len(entries))
	}
	if entries[0].Name() != "c.tar.gz" {
		t.Fatalf("expected the newest backup (c.tar.gz) to survive, got %q", entries[0].Name())
	}
}

func TestPruneBackupsKeepAllWhenUnderLimit(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "only.tar.gz"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := pruneBackups(time.Now(), dir, 5); err != nil {
		t.Fatalf("pruneBackups: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected the sole backup to survive when under the keep limit, got %d entries", len(entries))
	}
}
