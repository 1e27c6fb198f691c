package testutil

import (
	"os"
	"testing"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// SetTestEnvironment sets GO_ENV to test when it is unset and reports
// whether the process is safe to test in. Use it from TestMain.
func SetTestEnvironment() bool {
	if os.Getenv("GO_ENV") == "" {
		_ = os.Setenv("GO_ENV", "test")
	}
	return os.Getenv("GO_ENV") == "test"
}
