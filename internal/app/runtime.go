package app

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// testModeEnv makes cmd/opsdash and cmd/worker return before touching
// Postgres or Redis, so their packages can be built and tested in CI.
const testModeEnv = "OPSDASH_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	on, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(testModeEnv)))
	testModeFlag.Store(err == nil && on)
}

// InTestMode reports whether OPSDASH_TEST_MODE is set to a true value
// ("1", "true", ...). The environment is read once.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the environment; tests call it after t.Setenv.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	detectTestMode()
}
