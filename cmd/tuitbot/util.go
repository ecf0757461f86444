package main

import (
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// newULID mints a new lexicographically-sortable row identifier, matching
// the id scheme internal/store's fixtures and internal/gateway's audit
// records already use.
func newULID() string {
	return ulid.Make().String()
}

// activeHoursStart/activeHoursEnd split config.Scheduling.ActiveHours's
// single "HH:MM-HH:MM" field into the two bounds internal/runtime.Scheduling
// and internal/workflow.SafetyTunables keep as separate fields.
func activeHoursStart(window string) string {
	start, _, ok := strings.Cut(window, "-")
	if !ok {
		return ""
	}
	return start
}

func activeHoursEnd(window string) string {
	_, end, ok := strings.Cut(window, "-")
	if !ok {
		return ""
	}
	return end
}

func schedulingLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		slog.Warn("tuitbot: unknown timezone, defaulting to UTC", "timezone", tz, "error", err)
		return time.UTC
	}
	return loc
}
