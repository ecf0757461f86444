package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aramirez087/tuitbot/internal/config"
	"github.com/aramirez087/tuitbot/internal/core"
)

// emit prints data (success path) either as plain text via textFn or, when
// --output json was given, as a core.Envelope.
func emit(start time.Time, data any, textFn func()) {
	if flagOutput != "json" {
		textFn()
		return
	}
	meta := &core.Meta{
		ToolVersion: config.Service,
		ElapsedMS:   time.Since(start).Milliseconds(),
	}
	printEnvelope(core.NewSuccessEnvelope(data, meta))
}

// emitError prints err either as a plain-text message on stderr or, when
// --output json was given, as a failed core.Envelope, then returns err so
// the caller can propagate the command's non-zero exit code.
func emitError(start time.Time, err *core.Error) error {
	if flagOutput != "json" {
		fmt.Fprintln(os.Stderr, "error:", err.Error())
		return err
	}
	meta := &core.Meta{
		ToolVersion: config.Service,
		ElapsedMS:   time.Since(start).Milliseconds(),
	}
	printEnvelope(core.NewErrorEnvelope(err, meta))
	return err
}

func printEnvelope(env core.Envelope) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		fmt.Fprintln(os.Stderr, "failed to encode envelope:", err)
	}
}
