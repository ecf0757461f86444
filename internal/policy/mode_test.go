package policy

import "testing"

func TestParseOperatingMode(t *testing.T) {
	if m, err := ParseOperatingMode("autopilot"); err != nil || m != Autopilot {
		t.Fatalf("got %v, %v; want Autopilot, nil", m, err)
	}
	if m, err := ParseOperatingMode("composer"); err != nil || m != Composer {
		t.Fatalf("got %v, %v; want Composer, nil", m, err)
	}
	if _, err := ParseOperatingMode("bogus"); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func TestOperatingModeRequiresApproval(t *testing.T) {
	if Autopilot.RequiresApproval() {
		t.Fatal("autopilot should not force approval")
	}
	if !Composer.RequiresApproval() {
		t.Fatal("composer should force approval")
	}
}

func TestCapabilitiesForCloudRejectsLocalFS(t *testing.T) {
	caps := CapabilitiesFor(Cloud)
	if caps.SourceTypeAllowed("local_fs") {
		t.Fatal("cloud deployment must not allow local_fs sources")
	}
	if !caps.SourceTypeAllowed("google_drive") {
		t.Fatal("cloud deployment should allow google_drive sources")
	}
}

func TestCapabilitiesForDesktopAllowsLocalFS(t *testing.T) {
	caps := CapabilitiesFor(Desktop)
	if !caps.SourceTypeAllowed("local_fs") {
		t.Fatal("desktop deployment should allow local_fs sources")
	}
}

func TestCapabilitiesForUnknownSourceType(t *testing.T) {
	caps := CapabilitiesFor(Desktop)
	if caps.SourceTypeAllowed("smoke_signal") {
		t.Fatal("unknown source types should never be allowed")
	}
}

func TestMissingScopes(t *testing.T) {
	granted := []string{"tweet.read", "tweet.write", "users.read"}
	missing := MissingScopes(granted)
	if len(missing) == 0 {
		t.Fatal("expected missing scopes when offline.access is absent")
	}

	found := false
	for _, s := range missing {
		if s == "offline.access" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected offline.access in missing list, got %v", missing)
	}
}

func TestDowngradedFeatures(t *testing.T) {
	granted := append([]string{}, RequiredScopes...)
	down := DowngradedFeatures(granted)
	if _, ok := down["direct_messages"]; !ok {
		t.Fatal("direct_messages should be downgraded without dm.write")
	}

	grantedWithDM := append(granted, "dm.write")
	down = DowngradedFeatures(grantedWithDM)
	if _, ok := down["direct_messages"]; ok {
		t.Fatal("direct_messages should not be downgraded once dm.write is granted")
	}
}
