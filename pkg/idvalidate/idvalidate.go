// Package idvalidate validates the identifier strings that cross a trust
// boundary before they are interpolated into a graph-store command: node
// ids and finding ids are otherwise treated as opaque strings, so a
// strict regex is the only thing standing between user- or
// remote-controlled text and a shell invocation.
package idvalidate

import (
	"fmt"
	"regexp"
)

var (
	nodeIDPattern    = regexp.MustCompile(`^[a-z]{2}-[a-f0-9]{4,64}$`)
	findingIDPattern = regexp.MustCompile(`^[a-f0-9]{12}$`)
)

// ValidNodeID reports whether s is a well-formed graph node id.
func ValidNodeID(s string) bool { return nodeIDPattern.MatchString(s) }

// ValidFindingID reports whether s is a well-formed hotspot finding id.
func ValidFindingID(s string) bool { return findingIDPattern.MatchString(s) }

// RequireNodeID returns an error naming s if it is not a valid node id.
func RequireNodeID(s string) error {
	if !ValidNodeID(s) {
		return fmt.Errorf("idvalidate: %q is not a valid node id", s)
	}
	return nil
}

// RequireFindingID returns an error naming s if it is not a valid finding id.
func RequireFindingID(s string) error {
	if !ValidFindingID(s) {
		return fmt.Errorf("idvalidate: %q is not a valid finding id", s)
	}
	return nil
}
