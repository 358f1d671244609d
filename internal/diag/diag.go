// Package diag is an opt-in file logger for a process whose stdout belongs
// to the prompt host. It is a no-op unless explicitly enabled; the silent
// failure paths elsewhere in the codebase report here and nowhere else.
package diag

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// EnvEnabled turns diagnostics on regardless of the config file.
const EnvEnabled = "PROMPTLINE_DEBUG"

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Enable routes diagnostics to logPath. Enabling twice replaces the sink.
func Enable(logPath string) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		return err
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{logPath}
	cfg.ErrorOutputPaths = []string{logPath}
	built, err := cfg.Build()
	if err != nil {
		return err
	}
	mu.Lock()
	logger = built
	mu.Unlock()
	return nil
}

// EnabledByEnv reports whether PROMPTLINE_DEBUG=1 is set.
func EnabledByEnv() bool {
	return os.Getenv(EnvEnabled) == "1"
}

// L returns the current logger; a no-op logger when diagnostics are off.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Sync flushes the active sink, if any.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = logger.Sync()
}
