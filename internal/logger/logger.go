// Package logger provides the structured logging interface used across the
// reconciliation engine. It keeps the level vocabulary the rest of the
// codebase is written against (Debugf/Infof/Noticef/Warningf/Errorf/
// Criticalf) while backing it with logrus, since logrus is already part of
// the wider dependency surface this daemon draws on.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface every reconciliation component depends on.
// With(fields) returns a derived logger carrying the stable keys used across
// the reconciliation path (protocolNetwork, deployment, allocation,
// err.code, err.message).
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Noticef(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})
	With(fields Fields) Logger
}

// Fields is a set of structured key-value pairs attached to a log entry.
type Fields map[string]interface{}

type logrusLogger struct {
	entry *logrus.Entry
}

// New builds a Logger backed by logrus, formatted as JSON unless level is
// "debug", matching the CLI's --log-level flag.
func New(level string) Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if level == "debug" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) With(fields Fields) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *logrusLogger) Debugf(format string, args ...interface{})    { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})     { l.entry.Infof(format, args...) }
func (l *logrusLogger) Noticef(format string, args ...interface{})   { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warningf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{})    { l.entry.Errorf(format, args...) }
func (l *logrusLogger) Criticalf(format string, args ...interface{}) {
	l.entry.WithField("severity", "critical").Errorf(format, args...)
}
