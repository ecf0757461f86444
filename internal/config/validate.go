package config

import (
	"fmt"

	"github.com/aramirez087/tuitbot/internal/core"
	"github.com/aramirez087/tuitbot/internal/policy"
)

// Validate checks cross-field invariants Load cannot express through struct
// tags alone: mode/deployment_mode enum membership and content-source
// capability compatibility.
func (c *Config) Validate() error {
	if _, err := policy.ParseOperatingMode(c.Mode); err != nil {
		return core.NewError(core.CodeInvalidInput, err.Error())
	}

	deploymentMode, err := policy.ParseDeploymentMode(c.DeploymentMode)
	if err != nil {
		return core.NewError(core.CodeInvalidInput, err.Error())
	}

	caps := policy.CapabilitiesFor(deploymentMode)
	for _, src := range c.ContentSources.Sources {
		if !caps.SourceTypeAllowed(src.Type) {
			return core.NewError(core.CodeInvalidInput, fmt.Sprintf(
				"content source type %q is not permitted under deployment_mode %q", src.Type, c.DeploymentMode))
		}
	}

	if c.Policy.MaxMutationsPerHour <= 0 {
		return core.NewError(core.CodeInvalidInput, "policy.max_mutations_per_hour must be positive")
	}

	return nil
}
