package main

import (
	"testing"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/watchtower"
)

func TestNewContentProviderLocalFS(t *testing.T) {
	src := core.SourceContext{ID: "src-1", Type: "local_fs", ConfigJSON: `{"path":"/tmp/notes"}`}

	provider, err := newContentProvider(src)
	if err != nil {
		t.Fatalf("newContentProvider: %v", err)
	}
	fs, ok := provider.(watchtower.LocalFS)
	if !ok {
		t.Fatalf("expected a watchtower.LocalFS, got %T", provider)
	}
	if fs.Root != "/tmp/notes" {
		t.Fatalf("expected root /tmp/notes, got %q", fs.Root)
	}
}

func TestNewContentProviderGoogleDrive(t *testing.T) {
	src := core.SourceContext{ID: "src-2", Type: "google_drive", ConfigJSON: `{"path":"https://drive.example.com"}`}

	provider, err := newContentProvider(src)
	if err != nil {
		t.Fatalf("newContentProvider: %v", err)
	}
	if provider == nil {
		t.Fatal("expected a non-nil provider")
	}
}

func TestNewContentProviderUnsupportedType(t *testing.T) {
	src := core.SourceContext{ID: "src-3", Type: "dropbox", ConfigJSON: `{}`}

	if _, err := newContentProvider(src); err == nil {
		t.Fatal("expected an error for an unsupported source type")
	}
}

func TestNewContentProviderInvalidJSON(t *testing.T) {
	src := core.SourceContext{ID: "src-4", Type: "local_fs", ConfigJSON: `not json`}

	if _, err := newContentProvider(src); err == nil {
		t.Fatal("expected an error decoding invalid config JSON")
	}
}
