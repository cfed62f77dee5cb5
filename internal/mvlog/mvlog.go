// Package mvlog threads a structured logger through the tree layers.
// Every long-lived manager (bptree.Tree, mvtree.Tree, mvplus.Loader)
// accepts one as a constructor option; the default is a no-op logger
// so the core never requires a caller to configure zap first.
package mvlog

import "go.uber.org/zap"

// Logger is the sink every manager logs reorganization and purge
// events through. Never logs key/value payloads — the codecs keep
// those opaque to the core, so only ids, levels and counts appear.
type Logger struct {
	z *zap.Logger
}

// Nop returns a Logger that discards everything.
func Nop() Logger { return Logger{z: zap.NewNop()} }

// Wrap adapts an existing *zap.Logger. A nil logger is treated as Nop.
func Wrap(z *zap.Logger) Logger {
	if z == nil {
		return Nop()
	}
	return Logger{z: z}
}

func (l Logger) Debug(msg string, fields ...zap.Field) {
	if l.z != nil {
		l.z.Debug(msg, fields...)
	}
}

func (l Logger) Warn(msg string, fields ...zap.Field) {
	if l.z != nil {
		l.z.Warn(msg, fields...)
	}
}

func (l Logger) Error(msg string, fields ...zap.Field) {
	if l.z != nil {
		l.z.Error(msg, fields...)
	}
}

// Field re-exports the zap field constructors most call sites need,
// so importers of mvlog rarely need to import zap directly.
var (
	Uint64 = zap.Uint64
	Int    = zap.Int
	String = zap.String
	Bool   = zap.Bool
)
