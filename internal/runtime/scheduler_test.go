package runtime

import (
	"testing"
	"time"
)

func TestJitteredWithinTwentyPercent(t *testing.T) {
	interval := 10 * time.Minute
	lo := interval - interval/5
	hi := interval + interval/5

	for i := 0; i < 50; i++ {
		got := jittered(interval)
		if got < lo || got > hi {
			t.Fatalf("jittered(%v) = %v, want within [%v,%v]", interval, got, lo, hi)
		}
	}
}

func TestJitteredFallsBackToOneMinuteForNonPositive(t *testing.T) {
	got := jittered(0)
	if got < 48*time.Second || got > 72*time.Second {
		t.Fatalf("jittered(0) = %v, want ~1m +-20%%", got)
	}
}

func TestActiveHoursWaitDisabledWithoutWindow(t *testing.T) {
	r := &Runtime{deps: Deps{Scheduling: Scheduling{}}}
	if _, outside := r.activeHoursWait(); outside {
		t.Fatal("expected no active-hours gating when start/end are unset")
	}
}

func TestActiveHoursWaitReportsOutsideWindow(t *testing.T) {
	r := &Runtime{deps: Deps{Scheduling: Scheduling{
		ActiveHoursStart: "09:00",
		ActiveHoursEnd:   "17:00",
		Location:         time.UTC,
	}}}

	// activeHoursWait reads time.Now(), so this only asserts internal
	// consistency: if it reports outside, the wait must be positive.
	wait, outside := r.activeHoursWait()
	if outside && wait <= 0 {
		t.Fatalf("outside active hours but wait = %v", wait)
	}
}
