package openaicompat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aramirez087/tuitbot/internal/core"
)

func TestGenerateReturnsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Sure, happy to help."}},
			},
		})
	}))
	defer srv.Close()

	p, err := New("", "llama3.2", srv.URL, "", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text, err := p.Generate(t.Context(), "hello", core.GenerateParams{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Sure, happy to help." {
		t.Fatalf("got %q", text)
	}
}

func TestGenerateNoChoicesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]any{}})
	}))
	defer srv.Close()

	p, err := New("", "llama3.2", srv.URL, "", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Generate(t.Context(), "hello", core.GenerateParams{})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}
