package config

import "testing"

func baseValidConfig() *Config {
	return &Config{
		Mode:           "autopilot",
		DeploymentMode: "self_host",
		Policy: Policy{
			MaxMutationsPerHour: 20,
		},
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	cfg := baseValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}
}

func TestValidateRejectsLocalFSUnderCloud(t *testing.T) {
	cfg := baseValidConfig()
	cfg.DeploymentMode = "cloud"
	cfg.ContentSources.Sources = []ContentSource{{Type: "local_fs", Path: "/notes"}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for local_fs source under cloud deployment_mode")
	}
	if got := err.Error(); !contains(got, "local_fs") || !contains(got, "cloud") {
		t.Fatalf("error message should name the source type and mode, got %q", got)
	}
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Mode = "sleepwalk"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func TestValidateRejectsNonPositiveHourlyCap(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Policy.MaxMutationsPerHour = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive max_mutations_per_hour")
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
