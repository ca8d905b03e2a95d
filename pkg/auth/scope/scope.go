// Package scope checks an OAuth2 access token's space-separated scope
// string against the permission a handler requires, the same
// supported-set-plus-lookup shape reva uses for CS3 scope
// verification.
package scope

import "strings"

// ParseScopes splits a token's space-separated scp claim into a set.
func ParseScopes(scp string) map[string]bool {
	out := map[string]bool{}
	for _, s := range strings.Fields(scp) {
		out[s] = true
	}
	return out
}

// HasScope reports whether granted contains want.
func HasScope(granted map[string]bool, want string) bool {
	return granted[want]
}

// HasAny reports whether granted contains at least one of want.
func HasAny(granted map[string]bool, want ...string) bool {
	for _, w := range want {
		if granted[w] {
			return true
		}
	}
	return false
}

// HasAll reports whether granted contains every scope in want.
func HasAll(granted map[string]bool, want ...string) bool {
	for _, w := range want {
		if !granted[w] {
			return false
		}
	}
	return true
}

// RequireAny returns false if granted holds none of want, the gate a
// handler calls before proceeding.
func RequireAny(granted map[string]bool, want ...string) bool {
	if len(want) == 0 {
		return true
	}
	return HasAny(granted, want...)
}

// RequireAll returns false if granted is missing any scope in want.
func RequireAll(granted map[string]bool, want ...string) bool {
	return HasAll(granted, want...)
}
