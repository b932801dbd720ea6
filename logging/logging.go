// Package logging builds the process logger: a console sink at one level and
// an optional server sink that batches entries to the backend log endpoint.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a configuration string to a zap level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// New constructs the process logger with a console core. When uploader is
// non-nil a server core is teed in at serverLevel.
func New(consoleLevel zapcore.Level, uploader *Uploader, serverLevel zapcore.Level) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	console := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		consoleLevel,
	)
	if uploader == nil {
		return zap.New(console)
	}
	return zap.New(zapcore.NewTee(console, newServerCore(uploader, serverLevel)))
}

// serverCore forwards log entries into the batched uploader.
type serverCore struct {
	zapcore.LevelEnabler
	uploader *Uploader
	fields   []zapcore.Field
}

func newServerCore(u *Uploader, level zapcore.LevelEnabler) zapcore.Core {
	return &serverCore{LevelEnabler: level, uploader: u}
}

func (c *serverCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field{}, c.fields...), fields...)
	return &clone
}

func (c *serverCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *serverCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	c.uploader.Enqueue(Entry{
		Timestamp: ent.Time,
		Level:     ent.Level.String(),
		Message:   ent.Message,
		Fields:    enc.Fields,
	})
	return nil
}

func (c *serverCore) Sync() error { return nil }
