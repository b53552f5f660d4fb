package pollkit

import (
	"sync"

	"github.com/joeycumines/logiface"
)

var packageLogger struct {
	mu     sync.RWMutex
	logger *logiface.Logger[logiface.Event]
}

// SetLogger configures the package-level logger, used for library-internal
// faults (recovered callback panics, suppressed errors). Pass the generified
// form, e.g. stumpy.L.New(...).Logger(). A nil logger disables logging, which
// is also the default.
func SetLogger(logger *logiface.Logger[logiface.Event]) {
	packageLogger.mu.Lock()
	defer packageLogger.mu.Unlock()
	packageLogger.logger = logger
}

// logger returns the configured logger, possibly nil. All logiface entry
// points are nil-safe, so callers chain off the result unconditionally.
func logger() *logiface.Logger[logiface.Event] {
	packageLogger.mu.RLock()
	defer packageLogger.mu.RUnlock()
	return packageLogger.logger
}
