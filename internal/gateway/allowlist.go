package gateway

import (
	"regexp"
	"strings"
)

// allowedPaths is the fixed set of upstream path shapes the gateway will
// forward. Anything else is rejected with 404 before a single byte goes
// upstream; the allow-list is the blast-radius control for this, the sole
// network egress point to the threat-intel API.
var allowedPaths = []*regexp.Regexp{
	regexp.MustCompile(`^/info$`),
	regexp.MustCompile(`^/recentvictims$`),
	regexp.MustCompile(`^/groups$`),
	regexp.MustCompile(`^/group/[^/]+$`),
	regexp.MustCompile(`^/allcyberattacks$`),
	regexp.MustCompile(`^/recentcyberattacks$`),
	regexp.MustCompile(`^/groupvictims/[^/]+$`),
	regexp.MustCompile(`^/searchvictims/[^/]+$`),
	regexp.MustCompile(`^/countrycyberattacks/[A-Za-z]{2}$`),
	regexp.MustCompile(`^/countryvictims/[A-Za-z]{2}$`),
	regexp.MustCompile(`^/victims/\d{4}/\d{2}$`),
	regexp.MustCompile(`^/sectorvictims/[^/]+(/[A-Za-z]{2})?$`),
	regexp.MustCompile(`^/certs/[A-Za-z]{2}$`),
	regexp.MustCompile(`^/yara/[^/]+$`),
}

// pathAllowed reports whether the given upstream path matches the allow-list.
// Dot-only segments are rejected outright: `/group/..` would match the id
// shape but resolve upstream to a path outside the list.
func pathAllowed(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if seg == "." || seg == ".." {
			return false
		}
	}
	for _, re := range allowedPaths {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
