//go:build !windows

package instance

// Acquire is a no-op off Windows; single-instance enforcement relies
// on an OS mutex that only exists there.
func Acquire() (func(), error) {
	return func() {}, nil
}
