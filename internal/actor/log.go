package actor

import (
	"github.com/btcsuite/btclog"
)

// log is the package-level logger used by the actor runtime. It defaults to
// the disabled logger so that importing this package has no side effects
// until a caller installs a real backend via UseLogger.
var log = btclog.Disabled

// UseLogger installs a logger to be used by this package. It is intended to
// be called once at process startup, before any ActorSystem is created.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// DisableLog disables all library log output. Logging is disabled by
// default until UseLogger is called.
func DisableLog() {
	log = btclog.Disabled
}
