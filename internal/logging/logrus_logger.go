package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// logrusLogger is the default Logger implementation, backed by
// sirupsen/logrus — pulled into this module directly even though the
// teacher's go.mod only carries it indirectly (via prometheus/common),
// because orbas1-Synnergy in the same retrieved pack uses it directly for
// exactly this purpose (SPEC_FULL.md §9.1).
type logrusLogger struct {
	entry *logrus.Entry
}

// NewDefault returns the default Logger, writing leveled, timestamped
// lines to stderr.
func NewDefault() Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(base)}
}

func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusLogger) With(fields Fields) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}
