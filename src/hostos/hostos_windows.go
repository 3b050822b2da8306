//go:build windows

package hostos

import (
	"errors"
	"strconv"

	"golang.org/x/sys/windows/registry"
)

const currentVersionKey = `SOFTWARE\Microsoft\Windows NT\CurrentVersion`

type registrySource struct{}

// Default returns the registry-backed Source.
func Default() Source {
	return registrySource{}
}

func (registrySource) Value(key string) (string, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, currentVersionKey, registry.QUERY_VALUE)
	if err != nil {
		return "", err
	}
	defer k.Close()

	if s, _, err := k.GetStringValue(key); err == nil {
		return s, nil
	} else if errors.Is(err, registry.ErrNotExist) {
		return "", ErrNotFound
	}

	n, _, err := k.GetIntegerValue(key)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	return strconv.FormatUint(n, 10), nil
}
