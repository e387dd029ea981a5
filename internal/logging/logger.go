// Package logging defines the Logger surface every long-lived component
// holds. It mirrors the shape of the teacher's types.Logger interface
// (Info/Warn/Error/Debug, each with an f-suffixed formatter, plus
// ToggleDebug) but threads structured fields through instead of plain
// strings, the way orbas1-Synnergy uses logrus directly against its
// network/peer components.
package logging

// Logger is the structured logging surface used across the transport,
// dispatcher and action packages.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// With returns a Logger that prefixes every subsequent call with the
	// given key/value pairs, without mutating the receiver.
	With(fields Fields) Logger
}

// Fields is a set of structured key/value pairs attached to a log line.
type Fields map[string]interface{}
