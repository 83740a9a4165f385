package util

import "strings"

// NormalizeEmail lower-cases and trims an address so that lookups and
// invite bindings compare consistently.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
