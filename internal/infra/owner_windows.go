//go:build windows

package infra

// matchOwner is a no-op; files inherit the directory ACL on Windows.
func matchOwner(path, ref string) error {
	return nil
}
