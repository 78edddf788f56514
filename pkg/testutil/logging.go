package testutil

import (
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func init() {
	logrus.SetLevel(logrus.TraceLevel)
	if !isVerbose() {
		logrus.SetOutput(io.Discard)
	}
}

// isVerbose checks the raw arguments since init runs before flag parsing.
func isVerbose() bool {
	for _, arg := range os.Args {
		if arg == "-test.v=true" || arg == "-test.v" {
			return true
		}
	}
	return false
}

// DisableLogging discards standard logger output until the test completes.
func DisableLogging(t testing.TB) {
	original := logrus.StandardLogger().Out
	logrus.SetOutput(io.Discard)
	t.Cleanup(func() { logrus.SetOutput(original) })
}

// CaptureLogs records entries written to the standard logger for the rest of
// the test, without printing them.
func CaptureLogs(t testing.TB) *logtest.Hook {
	DisableLogging(t)

	logger := logrus.StandardLogger()
	original := logger.ReplaceHooks(make(logrus.LevelHooks))
	hook := logtest.NewGlobal()
	t.Cleanup(func() { logger.ReplaceHooks(original) })
	return hook
}
