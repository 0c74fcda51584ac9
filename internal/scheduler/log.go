package scheduler

import (
	"github.com/btcsuite/btclog"
)

// log is the package-level logger used by the scheduler. It defaults to the
// disabled logger so that importing this package has no side effects until
// a caller installs a real backend via UseLogger.
var log = btclog.Disabled

// UseLogger installs a logger to be used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// DisableLog disables all library log output.
func DisableLog() {
	log = btclog.Disabled
}
