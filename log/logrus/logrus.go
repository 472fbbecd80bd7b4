// Package logrus adapts a logrus entry to multicache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/multicache"
)

var _ multicache.Logger = Logger{}

// Logger writes through E. An "err" field holding an error is attached with
// WithError so hooks and formatters see it under logrus.ErrorKey.
type Logger struct{ E *logrus.Entry }

// New tags every record with component=multicache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "multicache")}
}

func (l Logger) entry(f multicache.Fields) *logrus.Entry {
	e := l.E
	if len(f) == 0 {
		return e
	}
	data := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			e = e.WithError(err)
			continue
		}
		data[k] = v
	}
	return e.WithFields(data)
}

func (l Logger) Debug(msg string, f multicache.Fields) { l.entry(f).Debug(msg) }
func (l Logger) Info(msg string, f multicache.Fields)  { l.entry(f).Info(msg) }
func (l Logger) Warn(msg string, f multicache.Fields)  { l.entry(f).Warn(msg) }
func (l Logger) Error(msg string, f multicache.Fields) { l.entry(f).Error(msg) }
