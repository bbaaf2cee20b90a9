package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "FINVERA_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

// InTestMode reports whether runtime side effects (servers, pools)
// should be skipped. Set via FINVERA_TEST_MODE=1, read once.
func InTestMode() bool {
	testModeOnce.Do(RefreshTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads the flag after a test changed the
// environment.
func RefreshTestMode() {
	testMode.Store(os.Getenv(testModeEnv) == "1")
}
