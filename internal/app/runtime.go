package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "ODYSSEY_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether binaries should skip runtime side effects.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the flag after environment changes.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	detectTestMode()
}
