package log

import "time"

// Log is the structured logger handed to every component.
type Log interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Log
	Enabled(level Level) bool
}

type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level. Unknown names fall back to info.
func ParseLevel(name string) (Level, bool) {
	switch name {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Field is a typed key/value pair attached to a log entry.
type Field struct {
	Key   string
	Kind  FieldKind
	Value any
}

type FieldKind uint8

const (
	AnyKind FieldKind = iota
	StringKind
	IntKind
	Int64Kind
	Float64Kind
	BoolKind
	DurationKind
	ErrorKind
)

func Any(key string, val any) Field {
	return Field{Key: key, Kind: AnyKind, Value: val}
}

func String(key, val string) Field {
	return Field{Key: key, Kind: StringKind, Value: val}
}

func Int(key string, val int) Field {
	return Field{Key: key, Kind: IntKind, Value: val}
}

func Int64(key string, val int64) Field {
	return Field{Key: key, Kind: Int64Kind, Value: val}
}

func Float64(key string, val float64) Field {
	return Field{Key: key, Kind: Float64Kind, Value: val}
}

func Bool(key string, val bool) Field {
	return Field{Key: key, Kind: BoolKind, Value: val}
}

func Duration(key string, val time.Duration) Field {
	return Field{Key: key, Kind: DurationKind, Value: val}
}

func Error(err error) Field {
	return Field{Key: "error", Kind: ErrorKind, Value: err}
}
