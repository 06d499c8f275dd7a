package pixview

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

var logger atomic.Pointer[zerolog.Logger]

func init() {
	nop := zerolog.Nop()
	logger.Store(&nop)
}

// SetLogger sets the logger used by pixview and its backends.
// The default logger discards everything.
func SetLogger(l zerolog.Logger) {
	logger.Store(&l)
}

// Logger returns the current package logger.
func Logger() *zerolog.Logger {
	return logger.Load()
}

// ComponentLogger returns the package logger with a component field attached.
func ComponentLogger(component string) zerolog.Logger {
	return logger.Load().With().Str("component", component).Logger()
}
