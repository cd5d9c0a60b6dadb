package orchestrator

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// pkgLogger is the package-level logger used by sessions and the scheduler.
var (
	pkgLogger   = slog.New(slog.NewTextHandler(io.Discard, nil))
	pkgLoggerMu sync.RWMutex
)

// SetLogger replaces the package-level logger. A nil logger silences
// orchestrator output.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	pkgLoggerMu.Lock()
	defer pkgLoggerMu.Unlock()
	pkgLogger = l
}

func logger() *slog.Logger {
	pkgLoggerMu.RLock()
	defer pkgLoggerMu.RUnlock()
	return pkgLogger
}

// debugLog writes a formatted debug line. It is handed to components
// such as the dependency graph that take a printf-style hook.
func debugLog(format string, args ...interface{}) {
	logger().Debug(fmt.Sprintf(format, args...), "component", "orchestrator")
}
