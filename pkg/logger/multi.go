package logger

import (
	"errors"
	"strings"
)

// Level orders the three message kinds of Logger.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// ParseLevel maps a config level name to a Level. debug counts as info.
func ParseLevel(name string) Level {
	switch strings.ToLower(name) {
	case "warn", "warning":
		return LevelWarning
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

type sink struct {
	log Logger
	min Level
}

// MultiLogger tees messages to several backends. Each backend has its own
// threshold, so the daemon can keep a full JSON log file while the terminal
// only shows what needs attention.
type MultiLogger struct {
	sinks []sink
}

// NewMultiLogger tees to every logger at all levels.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		m.AddAtLeast(l, LevelInfo)
	}
	return m
}

// AddAtLeast adds l, which only receives messages at min or above.
func (m *MultiLogger) AddAtLeast(l Logger, min Level) *MultiLogger {
	m.sinks = append(m.sinks, sink{log: l, min: min})
	return m
}

// Info reaches the backends without a threshold above info.
func (m *MultiLogger) Info(format string, args ...interface{}) {
	for _, s := range m.sinks {
		if s.min <= LevelInfo {
			s.log.Info(format, args...)
		}
	}
}

// Warning reaches the backends with a threshold of warning or lower.
func (m *MultiLogger) Warning(format string, args ...interface{}) {
	for _, s := range m.sinks {
		if s.min <= LevelWarning {
			s.log.Warning(format, args...)
		}
	}
}

// Error reaches every backend.
func (m *MultiLogger) Error(format string, args ...interface{}) {
	for _, s := range m.sinks {
		s.log.Error(format, args...)
	}
}

// With attaches the fields to every backend. Closing the result closes the
// backends too.
func (m *MultiLogger) With(keysAndValues ...interface{}) Logger {
	out := &MultiLogger{sinks: make([]sink, len(m.sinks))}
	for i, s := range m.sinks {
		out.sinks[i] = sink{log: With(s.log, keysAndValues...), min: s.min}
	}
	return out
}

// Close closes every backend, even after a failure, and joins the errors.
func (m *MultiLogger) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.log.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ FieldLogger = (*MultiLogger)(nil)
