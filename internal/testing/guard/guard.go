// Package guard forces test mode for any package that imports it,
// keeping test binaries from touching live Postgres or Redis.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("WRANGLER_TEST_MODE") == "" {
			_ = os.Setenv("WRANGLER_TEST_MODE", "1")
		}
	})
}
