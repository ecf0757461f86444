// Package stub is a core.LLMProvider used in tests and cold-start
// environments with no real provider configured. It returns canned or
// callback-driven responses instead of making network calls.
package stub

import (
	"context"
	"sync"

	"github.com/aramirez087/tuitbot/internal/core"
)

// Provider is a deterministic, in-memory LLMProvider fake.
type Provider struct {
	mu sync.Mutex

	// Respond, if set, computes the reply for each prompt. Takes priority
	// over Fixed.
	Respond func(prompt string, params core.GenerateParams) (string, error)

	// Fixed is returned verbatim when Respond is nil.
	Fixed string

	// HealthErr, if set, is returned by HealthCheck.
	HealthErr error

	Calls []string
}

func New(fixed string) *Provider {
	return &Provider{Fixed: fixed}
}

func (p *Provider) Generate(ctx context.Context, prompt string, params core.GenerateParams) (string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, prompt)
	p.mu.Unlock()

	if p.Respond != nil {
		return p.Respond(prompt, params)
	}
	return p.Fixed, nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	return p.HealthErr
}
