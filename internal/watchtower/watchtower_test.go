package watchtower

import (
	"context"
	"testing"
	"time"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/store/memory"
)

type fakeProvider struct {
	files map[string][]byte
	mtime time.Time
}

func (f fakeProvider) Scan(_ context.Context) ([]core.SourceFile, error) {
	out := make([]core.SourceFile, 0, len(f.files))
	for path := range f.files {
		out = append(out, core.SourceFile{RelativePath: path, ModifiedAt: f.mtime})
	}
	return out, nil
}

func (f fakeProvider) Read(_ context.Context, path string) ([]byte, error) {
	return f.files[path], nil
}

func TestSplitFrontMatterParsesTitleAndTags(t *testing.T) {
	raw := []byte("---\ntitle: Hello World\ntags: [go, testing]\n---\nbody text\n")
	fm, body := splitFrontMatter(raw)
	if fm.Title != "Hello World" {
		t.Fatalf("Title = %q, want %q", fm.Title, "Hello World")
	}
	if len(fm.Tags) != 2 || fm.Tags[0] != "go" || fm.Tags[1] != "testing" {
		t.Fatalf("Tags = %v", fm.Tags)
	}
	if body != "body text\n" {
		t.Fatalf("body = %q", body)
	}
}

func TestSplitFrontMatterNoBlockReturnsWholeFileAsBody(t *testing.T) {
	raw := []byte("just a plain file\nno front matter here\n")
	fm, body := splitFrontMatter(raw)
	if fm.Title != "" || len(fm.Tags) != 0 {
		t.Fatalf("expected zero-value front matter, got %+v", fm)
	}
	if body != string(raw) {
		t.Fatalf("body = %q, want original raw", body)
	}
}

func TestIngestFileStoresNewNode(t *testing.T) {
	store := memory.New()
	deps := Deps{Store: store}
	provider := fakeProvider{files: map[string][]byte{
		"posts/a.md": []byte("---\ntitle: A\ntags: [x]\n---\nHello\n"),
	}}

	changed, err := IngestFile(t.Context(), deps, "src-1", provider, core.SourceFile{RelativePath: "posts/a.md"})
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if !changed {
		t.Fatalf("expected changed=true for a new node")
	}

	nodes, err := store.ListNodesByStatus(t.Context(), core.NodePending)
	if err != nil {
		t.Fatalf("ListNodesByStatus: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("len(nodes) = %d, want 1", len(nodes))
	}
	if nodes[0].Title.V != "A" || !nodes[0].Title.Valid {
		t.Fatalf("Title = %+v", nodes[0].Title)
	}
	if nodes[0].Body != "Hello\n" {
		t.Fatalf("Body = %q", nodes[0].Body)
	}
}

func TestIngestFileDedupsUnchangedContent(t *testing.T) {
	store := memory.New()
	deps := Deps{Store: store}
	provider := fakeProvider{files: map[string][]byte{
		"posts/a.md": []byte("unchanged body"),
	}}

	file := core.SourceFile{RelativePath: "posts/a.md"}
	if _, err := IngestFile(t.Context(), deps, "src-1", provider, file); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	changed, err := IngestFile(t.Context(), deps, "src-1", provider, file)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if changed {
		t.Fatalf("expected changed=false on unchanged re-ingest")
	}

	nodes, err := store.ListNodesByStatus(t.Context(), core.NodePending)
	if err != nil {
		t.Fatalf("ListNodesByStatus: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("len(nodes) = %d, want 1 (no duplicate row)", len(nodes))
	}
}

func TestIngestFileResurfacesChangedContentAsPending(t *testing.T) {
	store := memory.New()
	deps := Deps{Store: store}
	files := map[string][]byte{"posts/a.md": []byte("v1")}
	provider := fakeProvider{files: files}
	file := core.SourceFile{RelativePath: "posts/a.md"}

	if _, err := IngestFile(t.Context(), deps, "src-1", provider, file); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	nodes, _ := store.ListNodesByStatus(t.Context(), core.NodePending)
	if err := store.MarkNodeProcessed(t.Context(), nodes[0].ID); err != nil {
		t.Fatalf("MarkNodeProcessed: %v", err)
	}

	files["posts/a.md"] = []byte("v2, different content")
	if _, err := IngestFile(t.Context(), deps, "src-1", provider, file); err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	pending, err := store.ListNodesByStatus(t.Context(), core.NodePending)
	if err != nil {
		t.Fatalf("ListNodesByStatus: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected the changed node to be re-marked pending, got %d pending", len(pending))
	}
}

func TestScanSourceIngestsAllFiles(t *testing.T) {
	store := memory.New()
	deps := Deps{Store: store}
	provider := fakeProvider{files: map[string][]byte{
		"a.md": []byte("one"),
		"b.md": []byte("two"),
	}}

	if err := ScanSource(t.Context(), deps, "src-1", provider); err != nil {
		t.Fatalf("ScanSource: %v", err)
	}

	nodes, err := store.ListNodesByStatus(t.Context(), core.NodePending)
	if err != nil {
		t.Fatalf("ListNodesByStatus: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("len(nodes) = %d, want 2", len(nodes))
	}
}
