// Package xlog wraps logrus the way the teacher's logger package does:
// one shared, level-configurable logger instance handed out per component
// via a short constructor rather than each package rolling its own.
package xlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel adjusts the shared logger's verbosity, e.g. to quiet it down
// so it does not drown `go test -v` output.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

// For returns a logger scoped to one component, e.g. For("table", logrus.Fields{"table": name}).
func For(component string, fields logrus.Fields) *logrus.Entry {
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["component"] = component
	return base.WithFields(fields)
}
