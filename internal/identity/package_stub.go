//go:build !windows

package identity

// queryPackageFullName has no meaning off Windows; every process is
// treated as a plain Win32 executable. Keeps the resolver logic
// testable on any platform.
func queryPackageFullName(int32) (string, bool, error) {
	return "", false, nil
}
