// Package llm selects and constructs the configured core.LLMProvider.
package llm

import (
	"fmt"

	"github.com/aramirez087/tuitbot/internal/config"
	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/llm/anthropic"
	"github.com/aramirez087/tuitbot/internal/llm/openaicompat"
	"github.com/aramirez087/tuitbot/internal/llm/stub"
)

// New builds the provider named by cfg.Provider: "anthropic",
// "openaicompat", or "stub".
func New(cfg config.LLM) (core.LLMProvider, error) {
	switch cfg.Provider {
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, core.NewError(core.CodeLLMNotConfigured, "llm.api_key is required for provider \"anthropic\"")
		}
		return anthropic.New(cfg.APIKey, cfg.Model, cfg.BaseURL, "", false)
	case "openaicompat":
		return openaicompat.New(cfg.APIKey, cfg.Model, cfg.BaseURL, "", false)
	case "stub", "":
		return stub.New("stubbed response"), nil
	default:
		return nil, fmt.Errorf("unknown llm.provider %q", cfg.Provider)
	}
}
