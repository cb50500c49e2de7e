package logger

import (
	"fmt"
	"strings"
)

// FieldLogger is a Logger that attaches key/value pairs to every entry.
type FieldLogger interface {
	Logger
	With(keysAndValues ...interface{}) Logger
}

// With returns l carrying the given fields. Backends without structured
// fields get them appended to each message as key=value.
func With(l Logger, keysAndValues ...interface{}) Logger {
	if fl, ok := l.(FieldLogger); ok {
		return fl.With(keysAndValues...)
	}
	return &suffixLogger{Logger: l, suffix: formatFields(keysAndValues)}
}

func formatFields(kv []interface{}) string {
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		b.WriteByte(' ')
		if i+1 < len(kv) {
			fmt.Fprintf(&b, "%v=%v", kv[i], kv[i+1])
		} else {
			fmt.Fprintf(&b, "%v=?", kv[i])
		}
	}
	return strings.ReplaceAll(b.String(), "%", "%%")
}

type suffixLogger struct {
	Logger
	suffix string
}

func (s *suffixLogger) Info(format string, args ...interface{}) {
	s.Logger.Info(format+s.suffix, args...)
}

func (s *suffixLogger) Warning(format string, args ...interface{}) {
	s.Logger.Warning(format+s.suffix, args...)
}

func (s *suffixLogger) Error(format string, args ...interface{}) {
	s.Logger.Error(format+s.suffix, args...)
}

func (s *suffixLogger) With(keysAndValues ...interface{}) Logger {
	return &suffixLogger{Logger: s.Logger, suffix: s.suffix + formatFields(keysAndValues)}
}

var _ FieldLogger = (*suffixLogger)(nil)
