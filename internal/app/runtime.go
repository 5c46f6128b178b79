package app

import (
	"os"
	"sync"
	"sync/atomic"
)

// testModeEnv short-circuits the binaries so test harnesses can import
// main packages without dialing Postgres or Redis.
const testModeEnv = "WRANGLER_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// InTestMode reports whether runtime side effects should be skipped. The
// environment is read once; use RefreshTestMode after mutating it.
func InTestMode() bool {
	testModeOnce.Do(func() {
		testModeFlag.Store(os.Getenv(testModeEnv) == "1")
	})
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the flag after the environment changed.
func RefreshTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}
