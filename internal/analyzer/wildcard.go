// Package analyzer derives security findings from stored policies,
// traffic logs and interface inventory. Analyzers never mutate policies
// or logs; their only output is recommendations.
package analyzer

import "strings"

// Tokens FortiOS treats as "match everything" in address, interface and
// service lists.
var wildcardTokens = map[string]struct{}{
	"all":             {},
	"any":             {},
	"0.0.0.0/0":       {},
	"0.0.0.0 0.0.0.0": {},
	"all_icmp":        {},
}

// HasWildcard reports whether any value in the list is a wildcard token.
func HasWildcard(values []string) bool {
	for _, v := range values {
		if _, ok := wildcardTokens[strings.ToLower(strings.TrimSpace(v))]; ok {
			return true
		}
	}
	return false
}

// HasWildcardService is HasWildcard plus the "always" schedule object,
// which shows up in service lists on some exports.
func HasWildcardService(values []string) bool {
	if HasWildcard(values) {
		return true
	}
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), "always") {
			return true
		}
	}
	return false
}
