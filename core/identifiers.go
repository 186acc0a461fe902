// Package core defines the identifier syntax, wire model, and error kinds of
// the Concurrent protocol as consumed by the client packages.
package core

import "strings"

// Identifier lengths and prefixes. CCID/CSID/CKID are 42-character opaque
// strings whose prefix names the identifier kind.
const (
	identifierLength = 42

	prefixCCID = "con1"
	prefixCSID = "ccs1"
	prefixCKID = "cck1"
)

// IsCCID reports whether id is syntactically an account root identifier.
func IsCCID(id string) bool {
	return isPrefixedIdentifier(id, prefixCCID)
}

// IsCSID reports whether id is syntactically a domain identity identifier.
func IsCSID(id string) bool {
	return isPrefixedIdentifier(id, prefixCSID)
}

// IsCKID reports whether id is syntactically a sub-key identifier.
func IsCKID(id string) bool {
	return isPrefixedIdentifier(id, prefixCKID)
}

func isPrefixedIdentifier(id, prefix string) bool {
	return len(id) == identifierLength &&
		strings.HasPrefix(id, prefix) &&
		!strings.Contains(id, ".")
}

// IsFQDN reports whether id looks like a DNS name rather than a protocol
// identifier. Any dotted name that does not start with a CCID/CSID/CKID
// prefix qualifies.
func IsFQDN(id string) bool {
	if id == "" || !strings.Contains(id, ".") {
		return false
	}
	for _, prefix := range []string{prefixCCID, prefixCSID, prefixCKID} {
		if strings.HasPrefix(id, prefix) {
			return false
		}
	}
	return true
}

// SplitResourceID splits a resource identifier of the form "<id>@<home>"
// into its local part and home suffix. The suffix is empty when absent.
func SplitResourceID(id string) (local, home string) {
	local, home, found := strings.Cut(id, "@")
	if !found {
		return id, ""
	}
	return local, home
}
