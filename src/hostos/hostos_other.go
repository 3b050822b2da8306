//go:build !windows && !darwin

package hostos

// Default returns a Source with no values; Linux hosts need none.
func Default() Source {
	return Static{}
}
