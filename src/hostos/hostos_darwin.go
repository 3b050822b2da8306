//go:build darwin

package hostos

import (
	"golang.org/x/sys/unix"
)

type sysctlSource struct{}

// Default returns the sysctl-backed Source.
func Default() Source {
	return sysctlSource{}
}

func (sysctlSource) Value(key string) (string, error) {
	v, err := unix.Sysctl(key)
	if err != nil {
		return "", ErrNotFound
	}
	return v, nil
}
