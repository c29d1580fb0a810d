//go:build !darwin

package permissions

import "testing"

func TestEnsurePermissionsNoop(t *testing.T) {
	if err := EnsurePermissions(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
