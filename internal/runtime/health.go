package runtime

import (
	"maps"
	"time"
)

// AccountHealth is the per-account slice of the health snapshot: degraded
// status, last successful post, and consecutive-auth-failure count used to
// trip the degraded flag.
type AccountHealth struct {
	Degraded             bool
	NeedsReauth          bool
	ConsecutiveAuthFails int
	LastPostedAt         time.Time
	LastError            string
	CircuitOpen          bool // this account's posting-queue breaker has tripped
}

// TaskHealth is the per-task slice: last run and last error.
type TaskHealth struct {
	LastRunAt    time.Time
	LastDuration time.Duration
	LastError    string
}

// Health is the full runtime snapshot returned by Runtime.Health.
type Health struct {
	Accounts map[string]AccountHealth
	Tasks    map[string]TaskHealth
}

// Health returns a deep-enough copy of the current snapshot; safe to call
// from any goroutine while the runtime is running.
func (r *Runtime) Health() Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := Health{
		Accounts: maps.Clone(r.health.Accounts),
		Tasks:    maps.Clone(r.health.Tasks),
	}
	return out
}

func (r *Runtime) recordTaskRun(name string, started time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	th := r.health.Tasks[name]
	th.LastRunAt = started
	th.LastDuration = time.Since(started)
	if err != nil {
		th.LastError = err.Error()
	} else {
		th.LastError = ""
	}
	r.health.Tasks[name] = th
}

func (r *Runtime) recordAccountAuthFailure(accountID string, degraded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ah := r.health.Accounts[accountID]
	ah.ConsecutiveAuthFails++
	ah.Degraded = degraded
	r.health.Accounts[accountID] = ah
}

func (r *Runtime) recordAccountAuthSuccess(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ah := r.health.Accounts[accountID]
	ah.ConsecutiveAuthFails = 0
	ah.Degraded = false
	r.health.Accounts[accountID] = ah
}

func (r *Runtime) recordPosted(accountID string, when time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ah := r.health.Accounts[accountID]
	ah.LastPostedAt = when
	r.health.Accounts[accountID] = ah
}

func (r *Runtime) recordBreakerState(accountID string, open bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ah := r.health.Accounts[accountID]
	ah.CircuitOpen = open
	r.health.Accounts[accountID] = ah
}
