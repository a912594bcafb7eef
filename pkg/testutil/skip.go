// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// SkipIfShort skips the test if running in short mode
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// RequireIntegration skips the test in short mode, in CI unless
// INTEGRATION_TESTS is set, and when no healthy container provider is reachable.
func RequireIntegration(t *testing.T) {
	t.Helper()
	SkipIfShort(t)
	if os.Getenv("INTEGRATION_TESTS") == "" && os.Getenv("CI") != "" {
		t.Skip("skipping integration test (set INTEGRATION_TESTS=1 to run)")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

// EnvOrDefault returns the value of the named variable, or fallback when unset.
// Integration tests use it to pick container images.
func EnvOrDefault(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fallback
}
