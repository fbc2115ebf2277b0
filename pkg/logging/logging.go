// Package logging provides structured logging for mcmultidrive.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents a log level.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

// ParseLevel maps a case-insensitive name to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "warning":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// Format selects how entries are rendered.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// output is shared by a logger and every child created with WithFields so
// that concurrent writers never interleave partial lines.
type output struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format Format
}

// Logger provides structured logging.
type Logger struct {
	out    *output
	fields map[string]any
}

// LogEntry represents a structured log entry.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// NewLogger creates a JSON logger on stderr with the specified level.
func NewLogger(level Level) *Logger {
	return &Logger{
		out:    &output{w: os.Stderr, level: level, format: FormatJSON},
		fields: make(map[string]any),
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	l := NewLogger(LevelError)
	l.SetOutput(io.Discard)
	return l
}

// WithFields returns a new logger with additional fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	newFields := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &Logger{out: l.out, fields: newFields}
}

// With is shorthand for WithFields with a single key.
func (l *Logger) With(key string, value any) *Logger {
	return l.WithFields(map[string]any{key: value})
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level Level) bool {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	return level.rank() >= l.out.level.rank()
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]any) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]any) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]any) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]any) {
	l.log(LevelError, msg, fields...)
}

// ErrorErr logs an error message with an error value.
func (l *Logger) ErrorErr(msg string, err error, fields ...map[string]any) {
	combined := map[string]any{"error": fmt.Sprint(err)}
	for _, f := range fields {
		for k, v := range f {
			combined[k] = v
		}
	}
	l.log(LevelError, msg, combined)
}

// Log writes msg at an explicit level.
func (l *Logger) Log(level Level, msg string, fields ...map[string]any) {
	l.log(level, msg, fields...)
}

func (l *Logger) log(level Level, msg string, fields ...map[string]any) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if level.rank() < l.out.level.rank() {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Fields:    make(map[string]any, len(l.fields)),
	}
	for k, v := range l.fields {
		entry.Fields[k] = v
	}
	for _, f := range fields {
		for k, v := range f {
			entry.Fields[k] = v
		}
	}
	if len(entry.Fields) == 0 {
		entry.Fields = nil
	}

	if l.out.format == FormatText {
		io.WriteString(l.out.w, renderText(entry))
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.out.w, `{"level":"error","message":"failed to marshal log entry"}`+"\n")
		return
	}
	l.out.w.Write(append(data, '\n'))
}

func renderText(e LogEntry) string {
	var b strings.Builder
	b.WriteString(e.Timestamp[:min(len(e.Timestamp), 19)])
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(string(e.Level)))
	b.WriteByte(' ')
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	b.WriteByte('\n')
	return b.String()
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.w = w
}

// SetLevel sets the log level.
func (l *Logger) SetLevel(level Level) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.level = level
}

// SetFormat switches between JSON and text rendering.
func (l *Logger) SetFormat(format Format) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if format != FormatText {
		format = FormatJSON
	}
	l.out.format = format
}

// Global logger instance
var global = NewLogger(LevelInfo)

// SetGlobal sets the global logger.
func SetGlobal(l *Logger) {
	global = l
}

// Global returns the global logger.
func Global() *Logger {
	return global
}

// Debug logs to the global logger.
func Debug(msg string, fields ...map[string]any) {
	global.Debug(msg, fields...)
}

// Info logs to the global logger.
func Info(msg string, fields ...map[string]any) {
	global.Info(msg, fields...)
}

// Warn logs to the global logger.
func Warn(msg string, fields ...map[string]any) {
	global.Warn(msg, fields...)
}

// Error logs to the global logger.
func Error(msg string, fields ...map[string]any) {
	global.Error(msg, fields...)
}

// ErrorErr logs to the global logger with an error.
func ErrorErr(msg string, err error, fields ...map[string]any) {
	global.ErrorErr(msg, err, fields...)
}

// WithFields returns a new logger from global with additional fields.
func WithFields(fields map[string]any) *Logger {
	return global.WithFields(fields)
}
