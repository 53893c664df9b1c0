package rewrite

import (
	"go.uber.org/zap"

	"github.com/wippyai/jvm-rewrite/rewrite/internal/engine"
)

// Logger returns the logger used for call-site and rewrite tracing.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	return engine.Logger()
}

// SetLogger installs l for call-site and rewrite tracing. Nil restores the
// no-op logger.
func SetLogger(l *zap.Logger) {
	engine.SetLogger(l)
}
