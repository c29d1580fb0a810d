//go:build !darwin

package permissions

// EnsurePermissions is a no-op on non-macOS platforms. ALSA devices are
// guarded by file permissions, which surface as open errors.
func EnsurePermissions() error {
	return nil
}
