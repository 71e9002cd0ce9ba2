package logging

import (
	"fmt"
	"log"
	"reflect"
)

// Logger is the printf-style logging contract shared by every component.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// IsNil reports whether logger is nil or wraps a nil pointer receiver.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	val := reflect.ValueOf(logger)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}

// stdLogger writes through the standard library logger with a component tag.
type stdLogger struct {
	out       *log.Logger
	component string
	debug     bool
}

// New returns a Logger backed by the standard library logger. Debug output is
// dropped unless debug is set.
func New(component string, debug bool) Logger {
	return &stdLogger{out: log.Default(), component: component, debug: debug}
}

// NewWith is like New but writes to out.
func NewWith(out *log.Logger, component string, debug bool) Logger {
	if out == nil {
		out = log.Default()
	}
	return &stdLogger{out: out, component: component, debug: debug}
}

func (l *stdLogger) Debug(format string, args ...any) {
	if !l.debug {
		return
	}
	l.emit("DEBUG", format, args...)
}

func (l *stdLogger) Info(format string, args ...any)  { l.emit("INFO", format, args...) }
func (l *stdLogger) Warn(format string, args ...any)  { l.emit("WARN", format, args...) }
func (l *stdLogger) Error(format string, args ...any) { l.emit("ERROR", format, args...) }

func (l *stdLogger) emit(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l.component == "" {
		l.out.Printf("%s %s", level, msg)
		return
	}
	l.out.Printf("%s [%s] %s", level, l.component, msg)
}

func init() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
}
