package localization

import (
	"testing"

	"go.uber.org/goleak"
)

// The worker pool in LocalizeDetections must not leak goroutines across
// runs, including cancelled ones.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("testing.(*T).Run"),
		goleak.IgnoreTopFunction("runtime.gopark"),
		goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
		goleak.IgnoreTopFunction("time.Sleep"),
	)
}
