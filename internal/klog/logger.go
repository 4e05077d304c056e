// internal/klog/logger.go

package klog

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// Level orders log severities. Messages below a logger's threshold are dropped.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the sink for lifecycle and diagnostic messages.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is a key-value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// DefaultLogger writes through the standard log package.
type DefaultLogger struct {
	out   *log.Logger
	level atomic.Int32
}

// NewDefaultLogger creates a logger that drops everything below level.
// A nil out uses log.Default().
func NewDefaultLogger(out *log.Logger, level Level) *DefaultLogger {
	if out == nil {
		out = log.Default()
	}
	l := &DefaultLogger{out: out}
	l.level.Store(int32(level))
	return l
}

// SetLevel changes the threshold at runtime.
func (l *DefaultLogger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func (l *DefaultLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields...) }
func (l *DefaultLogger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields...) }
func (l *DefaultLogger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields...) }
func (l *DefaultLogger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields...) }

func (l *DefaultLogger) log(level Level, msg string, fields ...Field) {
	if level < Level(l.level.Load()) {
		return
	}
	l.out.Println(Format(level, msg, fields...))
}

// Format renders a log line as "[LEVEL] msg {k: v, k: v}".
func Format(level Level, msg string, fields ...Field) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	if len(fields) > 0 {
		b.WriteString(" {")
		for i, f := range fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %v", f.Key, f.Value)
		}
		b.WriteString("}")
	}
	return b.String()
}

// NoOpLogger discards all log messages.
type NoOpLogger struct{}

func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (NoOpLogger) Debug(string, ...Field) {}
func (NoOpLogger) Info(string, ...Field)  {}
func (NoOpLogger) Warn(string, ...Field)  {}
func (NoOpLogger) Error(string, ...Field) {}
