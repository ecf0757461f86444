package runtime

import (
	"errors"
	"testing"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/scoring"
)

func TestClassifySkippableConvertsDeferred(t *testing.T) {
	err := classifySkippable(&scoring.Deferred{})
	if err != errSkipped {
		t.Fatalf("got %v, want errSkipped", err)
	}
}

func TestClassifySkippableConvertsCoreError(t *testing.T) {
	err := classifySkippable(core.NewError(core.CodeSafetyRejected, "too similar"))
	if err != errSkipped {
		t.Fatalf("got %v, want errSkipped", err)
	}
}

func TestClassifySkippablePassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("boom")
	if got := classifySkippable(plain); got != plain {
		t.Fatalf("got %v, want original error passed through unchanged", got)
	}
}

func TestClassifySkippableNil(t *testing.T) {
	if err := classifySkippable(nil); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
}
