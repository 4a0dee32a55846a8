package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger provides leveled, printf-style logging throughout the application,
// backed by logrus.
type Logger struct {
	l *logrus.Logger
}

// NewLogger creates a Logger writing to stdout at the given level.
// Unknown levels fall back to info.
func NewLogger(level string) *Logger {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceColors:     true,
	})
	l.SetOutput(os.Stdout)

	return &Logger{l: l}
}

func (lg *Logger) Info(format string, args ...any) {
	lg.l.Infof(format, args...)
}

func (lg *Logger) Warn(format string, args ...any) {
	lg.l.Warnf(format, args...)
}

func (lg *Logger) Error(format string, args ...any) {
	lg.l.Errorf(format, args...)
}

func (lg *Logger) Debug(format string, args ...any) {
	lg.l.Debugf(format, args...)
}
