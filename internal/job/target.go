package job

import (
	"fmt"
	"strings"
)

// NormalizeTarget lowercases a hex target and left-pads it with zeros to 64
// characters so that string order equals numeric order.
func NormalizeTarget(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty target")
	}
	if len(s) > 64 {
		return "", fmt.Errorf("target longer than 64 hex characters: %d", len(s))
	}
	s = strings.ToLower(s)
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return "", fmt.Errorf("invalid hex character %q", c)
		}
	}
	return strings.Repeat("0", 64-len(s)) + s, nil
}

// MeetsTarget reports whether hashHex is strictly below targetHex. Both must
// be lowercase and 64 characters long.
func MeetsTarget(hashHex, targetHex string) bool {
	return hashHex < targetHex
}
