package utilities

import "strings"

// CanonicalAddress is the form every wallet address is stored and compared in.
func CanonicalAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
