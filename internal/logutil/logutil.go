// Package logutil is a small structured-logging abstraction, modeled after
// the Logger/Helper/Filter shape the teacher library builds on top of its
// own vendored logging helper rather than on the standard library alone.
package logutil

import (
	"fmt"
	"io"
	"log"
	"sync"
)

// Level is a logging severity.
type Level int

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

// Logger is the minimal sink every log call eventually reaches.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// stdLogger adapts the standard library *log.Logger to Logger.
type stdLogger struct {
	mu  sync.Mutex
	std *log.Logger
}

// NewStdLogger builds a Logger that writes to w using the standard library
// logger, one line per call.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{std: log.New(w, "", log.LstdFlags)}
}

func (s *stdLogger) Log(level Level, keyvals ...interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.std.Println(append([]interface{}{level.String()}, keyvals...)...)
	return nil
}

// filter wraps a Logger and drops records below a configured level.
type filter struct {
	Logger
	level Level
}

// FilterOption configures a filtering Logger built by NewFilter.
type FilterOption func(*filter)

// FilterLevel sets the minimum level that passes through the filter.
func FilterLevel(level Level) FilterOption {
	return func(f *filter) { f.level = level }
}

// NewFilter returns a Logger that only forwards records at or above the
// configured level to the wrapped Logger.
func NewFilter(logger Logger, opts ...FilterOption) Logger {
	f := &filter{Logger: logger, level: LevelInfo}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.Logger.Log(level, keyvals...)
}

// Helper wraps a Logger with leveled, printf-free key/value convenience
// methods, the same surface the teacher's `*log.Helper` exposes at call
// sites such as `file.logger.Errorw(...)`.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger. A nil logger yields a Helper that discards output.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, msg string, keyvals ...interface{}) {
	if h == nil || h.logger == nil {
		return
	}
	args := make([]interface{}, 0, len(keyvals)+1)
	args = append(args, msg)
	args = append(args, keyvals...)
	_ = h.logger.Log(level, args...)
}

func (h *Helper) Debugw(msg string, keyvals ...interface{}) { h.log(LevelDebug, msg, keyvals...) }
func (h *Helper) Infow(msg string, keyvals ...interface{})  { h.log(LevelInfo, msg, keyvals...) }
func (h *Helper) Warnw(msg string, keyvals ...interface{})  { h.log(LevelWarn, msg, keyvals...) }
func (h *Helper) Errorw(msg string, keyvals ...interface{}) { h.log(LevelError, msg, keyvals...) }

// Warnf is a convenience used where the caller already has a formatted
// string rather than key/value pairs.
func (h *Helper) Warnf(format string, args ...interface{}) {
	h.log(LevelWarn, fmt.Sprintf(format, args...))
}
