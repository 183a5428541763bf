// Package logging provides the small component-tagged logger used across
// httpsocks5, grounded in the standard-library `log` convention Resin uses
// throughout its own service packages (e.g. `log.Printf("[metrics] ...")"):
// no third-party logging library is imported directly anywhere in the
// retrieval pack, so none is introduced here either.
package logging

import (
	"log"
	"os"
)

// Logger prefixes every line with a component tag, e.g. "[session]".
type Logger struct {
	component string
	std       *log.Logger
}

// New returns a Logger for the given component, writing to stderr.
func New(component string) *Logger {
	return &Logger{
		component: component,
		std:       log.New(os.Stderr, "", log.LstdFlags),
	}
}

// Printf logs a formatted message tagged with the component name.
func (l *Logger) Printf(format string, args ...any) {
	l.std.Printf("[%s] "+format, append([]any{l.component}, args...)...)
}

// Println logs a single message tagged with the component name.
func (l *Logger) Println(args ...any) {
	l.std.Println(append([]any{"[" + l.component + "]"}, args...)...)
}
