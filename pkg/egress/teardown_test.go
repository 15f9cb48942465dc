package egress

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain asserts the package leaves no goroutines running once its
// tests finish, directly exercising P4 (teardown resource bound) for
// every response-pump goroutine spawned by the tests in this package.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
