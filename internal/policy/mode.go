// Package policy defines the operating-mode and deployment-mode enums and
// the pure capability-derivation function built on top of them.
package policy

import "fmt"

// OperatingMode governs whether the gateway auto-executes mutations or
// routes everything to human approval.
type OperatingMode string

const (
	Autopilot OperatingMode = "autopilot"
	Composer  OperatingMode = "composer"
)

// ParseOperatingMode validates a config string against the enum.
func ParseOperatingMode(s string) (OperatingMode, error) {
	switch OperatingMode(s) {
	case Autopilot, Composer:
		return OperatingMode(s), nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be autopilot or composer", s)
	}
}

// RequiresApproval reports whether this mode forces every mutation through
// the approval queue, independent of policy.require_approval_for.
func (m OperatingMode) RequiresApproval() bool {
	return m == Composer
}

// DeploymentMode governs the install shape and, through it, which content
// source types may be registered.
type DeploymentMode string

const (
	Desktop  DeploymentMode = "desktop"
	SelfHost DeploymentMode = "self_host"
	Cloud    DeploymentMode = "cloud"
)

// ParseDeploymentMode validates a config string against the enum.
func ParseDeploymentMode(s string) (DeploymentMode, error) {
	switch DeploymentMode(s) {
	case Desktop, SelfHost, Cloud:
		return DeploymentMode(s), nil
	default:
		return "", fmt.Errorf("invalid deployment_mode %q: must be desktop, self_host, or cloud", s)
	}
}

// Capabilities is the static, deployment-mode-derived feature set. These
// are never individually configurable — only a pure function of mode.
type Capabilities struct {
	LocalFolder      bool
	ManualLocalPath  bool
	GoogleDrive      bool
	InlineIngest     bool
	FilePickerNative bool
}

// CapabilitiesFor returns the fixed capability set for a deployment mode.
func CapabilitiesFor(mode DeploymentMode) Capabilities {
	switch mode {
	case Desktop:
		return Capabilities{
			LocalFolder:      true,
			ManualLocalPath:  true,
			GoogleDrive:      true,
			InlineIngest:     true,
			FilePickerNative: true,
		}
	case SelfHost:
		return Capabilities{
			LocalFolder:     true,
			ManualLocalPath: true,
			GoogleDrive:     true,
			InlineIngest:    true,
		}
	case Cloud:
		return Capabilities{
			GoogleDrive:  true,
			InlineIngest: true,
		}
	default:
		return Capabilities{}
	}
}

// SourceTypeAllowed reports whether a content-source type may be registered
// under the given capability set. Unknown source types are rejected.
func (c Capabilities) SourceTypeAllowed(sourceType string) bool {
	switch sourceType {
	case "local_fs":
		return c.LocalFolder || c.ManualLocalPath
	case "google_drive":
		return c.GoogleDrive
	case "inline":
		return c.InlineIngest
	default:
		return false
	}
}
