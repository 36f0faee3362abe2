package log

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Log = (*Logger)(nil)

var (
	defaultLogger *Logger
	defaultOnce   sync.Once
)

// Logger adapts zap to Log.
type Logger struct {
	zap   *zap.Logger
	level zap.AtomicLevel
}

// New builds a JSON logger writing to stderr. The first logger built becomes
// the process default returned by Provide.
func New(level Level) *Logger {
	return NewWithOutput(level, "stderr")
}

// NewWithOutput is New with explicit zap output paths, e.g. a file when the
// terminal is taken by the map.
func NewWithOutput(level Level, outputs ...string) *Logger {
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	atom := zap.NewAtomicLevelAt(toZapLevel(level))
	config := zap.Config{
		Level:       atom,
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := config.Build()
	if err != nil {
		panic(err)
	}

	logger := &Logger{zap: z, level: atom}
	defaultOnce.Do(func() { defaultLogger = logger })
	return logger
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop(), level: zap.NewAtomicLevelAt(zap.FatalLevel)}
}

// Provide returns the process default logger, or a no-op logger if none was
// built yet.
func Provide() *Logger {
	if defaultLogger == nil {
		return NewNop()
	}
	return defaultLogger
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.zap.Debug(msg, toZapFields(fields)...)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.zap.Info(msg, toZapFields(fields)...)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.zap.Warn(msg, toZapFields(fields)...)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.zap.Error(msg, toZapFields(fields)...)
}

func (l *Logger) With(fields ...Field) Log {
	return &Logger{zap: l.zap.With(toZapFields(fields)...), level: l.level}
}

func (l *Logger) Enabled(level Level) bool {
	return l.level.Enabled(toZapLevel(level))
}

// SetLevel changes the level of this logger and every child derived from it.
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(toZapLevel(level))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zap.DebugLevel
	case LevelWarn:
		return zap.WarnLevel
	case LevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func toZapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		switch f.Kind {
		case StringKind:
			out[i] = zap.String(f.Key, f.Value.(string))
		case IntKind:
			out[i] = zap.Int(f.Key, f.Value.(int))
		case Int64Kind:
			out[i] = zap.Int64(f.Key, f.Value.(int64))
		case Float64Kind:
			out[i] = zap.Float64(f.Key, f.Value.(float64))
		case BoolKind:
			out[i] = zap.Bool(f.Key, f.Value.(bool))
		case DurationKind:
			out[i] = zap.Duration(f.Key, f.Value.(time.Duration))
		case ErrorKind:
			if err, ok := f.Value.(error); ok && err != nil {
				out[i] = zap.NamedError(f.Key, err)
			} else {
				out[i] = zap.Skip()
			}
		default:
			out[i] = zap.Any(f.Key, f.Value)
		}
	}
	return out
}
