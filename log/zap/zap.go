// Package zap adapts a zap logger to multicache.Logger.
package zap

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/multicache"
)

var _ multicache.Logger = Logger{}

// Logger writes through L. Fields are only converted when the level is
// enabled on L's core.
type Logger struct{ L *zap.Logger }

// New names the logger "multicache".
func New(l *zap.Logger) Logger { return Logger{L: l.Named("multicache")} }

func (z Logger) Debug(msg string, f multicache.Fields) { z.write(zapcore.DebugLevel, msg, f) }
func (z Logger) Info(msg string, f multicache.Fields)  { z.write(zapcore.InfoLevel, msg, f) }
func (z Logger) Warn(msg string, f multicache.Fields)  { z.write(zapcore.WarnLevel, msg, f) }
func (z Logger) Error(msg string, f multicache.Fields) { z.write(zapcore.ErrorLevel, msg, f) }

func (z Logger) write(lvl zapcore.Level, msg string, f multicache.Fields) {
	if z.L == nil {
		return
	}
	ce := z.L.Check(lvl, msg)
	if ce == nil {
		return
	}
	ce.Write(fields(f)...)
}

func fields(f multicache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
