// Package testing flips the service into test mode. Test files import
// it for side effect so binaries under test skip runtime startup.
package testing

import "os"

func init() {
	_ = os.Setenv("FINVERA_TEST_MODE", "1")
}
