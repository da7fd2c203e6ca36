package security

import (
	"path"
	"strings"
)

// MatchHost reports whether host matches any of the configured allow-list
// patterns. The host is normalized by stripping a trailing :port and
// lower-casing; patterns may contain a single * wildcard segment and are
// matched case-insensitively, glob style.
func MatchHost(patterns []string, host string) bool {
	if host == "" {
		return false
	}

	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	host = strings.ToLower(host)

	for _, p := range patterns {
		ok, err := path.Match(strings.ToLower(strings.TrimSpace(p)), host)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// MatchOrigin reports whether an Origin header value matches any of the
// configured allowed origins, which may be glob patterns.
func MatchOrigin(patterns []string, origin string) bool {
	if origin == "" {
		return false
	}
	origin = strings.ToLower(origin)
	for _, p := range patterns {
		ok, err := path.Match(strings.ToLower(strings.TrimSpace(p)), origin)
		if err == nil && ok {
			return true
		}
	}
	return false
}
