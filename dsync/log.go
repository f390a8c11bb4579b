package dsync

import (
	"fmt"
	"log"
)

// Verbosity levels.
const (
	// Info messages are always logged.
	Info = 0

	// More adds a line per file copy and document key written.
	More = 1

	// Debug adds a line per comparison and decision.
	Debug = 2
)

type logger struct {
	l         *log.Logger
	verbosity int
}

func newLogger(l *log.Logger, verbosity int) logger {
	if l == nil {
		l = log.Default()
	}
	return logger{l: l, verbosity: verbosity}
}

func (lg logger) logf(level int, format string, args ...interface{}) {
	if lg.verbosity < level {
		return
	}
	lg.l.Output(3, fmt.Sprintf(format, args...))
}

func (lg logger) infof(format string, args ...interface{}) {
	lg.logf(Info, format, args...)
}

func (lg logger) moref(format string, args ...interface{}) {
	lg.logf(More, format, args...)
}

func (lg logger) debugf(format string, args ...interface{}) {
	lg.logf(Debug, format, args...)
}
