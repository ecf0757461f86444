package policy

// RequiredScopes is the baseline OAuth scope set every account must hold.
var RequiredScopes = []string{
	"tweet.read",
	"tweet.write",
	"users.read",
	"follows.read",
	"follows.write",
	"like.read",
	"like.write",
	"offline.access",
}

// FeatureScope maps an optional feature to the scope it needs. Missing a
// scope downgrades (disables) the feature rather than failing startup.
var FeatureScope = map[string]string{
	"direct_messages": "dm.write",
	"compliance":      "compliance.write",
	"usage_reporting": "usage.read",
	"ads":             "ads.write",
	"moderation":      "tweet.moderate.write",
	"lists":           "list.read",
	"mute":            "mute.read",
	"block":           "block.read",
	"bookmarks":       "bookmark.read",
	"spaces":          "space.read",
}

// MissingScopes returns the subset of RequiredScopes not present in granted.
func MissingScopes(granted []string) []string {
	have := make(map[string]bool, len(granted))
	for _, s := range granted {
		have[s] = true
	}

	var missing []string
	for _, s := range RequiredScopes {
		if !have[s] {
			missing = append(missing, s)
		}
	}
	return missing
}

// DowngradedFeatures returns the features whose required scope is absent
// from granted, so the caller can disable them and log a single warning each.
func DowngradedFeatures(granted []string) map[string]string {
	have := make(map[string]bool, len(granted))
	for _, s := range granted {
		have[s] = true
	}

	out := map[string]string{}
	for feature, scope := range FeatureScope {
		if !have[scope] {
			out[feature] = scope
		}
	}
	return out
}
