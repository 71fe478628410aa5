// Package guard switches binaries into test mode. Import it for side effects
// from any test that touches code paths guarded by app.InTestMode.
package guard

import "os"

// Env is the variable app.InTestMode reads.
const Env = "ODYSSEY_TEST_MODE"

func init() {
	if _, ok := os.LookupEnv(Env); !ok {
		_ = os.Setenv(Env, "1")
	}
}
