// Package testing puts binaries into test mode when blank-imported by a test
// package, and seeds the environment LoadConfig requires.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

var testEnv = map[string]string{
	"SESSION_SECRET":  "test-session-secret",
	"CSRF_SECRET":     "test-csrf-secret",
	"BILLING_API_URL": "http://127.0.0.1:0/api/v1",
	"GOTENBERG_URL":   "http://127.0.0.1:0",
}

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		for key, value := range testEnv {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain runs m with test mode enabled.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
