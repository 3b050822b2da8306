// Package hostos reads operating system facts from the registry on Windows
// and from sysctl on macOS.
package hostos

import (
	"errors"
)

// ErrNotFound is returned when a key does not exist on this host.
var ErrNotFound = errors.New("hostos: value not found")

// Well-known keys. On Windows these name values under
// HKLM\SOFTWARE\Microsoft\Windows NT\CurrentVersion; on macOS they are
// sysctl names.
const (
	KeyProductName    = "ProductName"
	KeyReleaseID      = "ReleaseId"
	KeyDisplayVersion = "DisplayVersion"
	KeyBuildNumber    = "CurrentBuildNumber"
	KeyUBR            = "UBR"
	KeyMajorVersion   = "CurrentMajorVersionNumber"
	KeyMinorVersion   = "CurrentMinorVersionNumber"

	KeyDarwinProductVersion = "kern.osproductversion"
)

// Source looks up a single host OS value.
type Source interface {
	Value(key string) (string, error)
}

// Static is a Source backed by a map, used for hosts with nothing to query
// and in tests.
type Static map[string]string

// Value implements Source.
func (s Static) Value(key string) (string, error) {
	if v, ok := s[key]; ok {
		return v, nil
	}
	return "", ErrNotFound
}
