package validation

import (
	"regexp"

	"github.com/Masterminds/semver/v3"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:/\-]*$`)

// IsKey reports whether s is a valid registry identifier.
func IsKey(s string) bool {
	return keyPattern.MatchString(s)
}

// IsSemver reports whether s parses as a semantic version.
func IsSemver(s string) bool {
	_, err := semver.NewVersion(s)
	return err == nil
}
