// Package logging is a small leveled, structured logger. Entries look like
//
//	[2024-01-02T03:04:05Z] [WARN] msg fields=[k=v ...]
//
// The run ID stored in the context is appended as a run_id field.
package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"
)

// Level orders log severities. LevelOff disables logging entirely.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "OFF"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelOff {
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel maps a case-insensitive level name to a Level. Empty input
// selects fallback.
func ParseLevel(name string, fallback Level) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return fallback, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "off", "none":
		return LevelOff, nil
	}
	return fallback, fmt.Errorf("unknown log level %q", name)
}

// Field is a key-value pair attached to an entry.
type Field struct {
	Key   string
	Value any
}

// F creates a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logger is the logging surface used by the CLI.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
}

// New returns a StdLogger writing to w, or a NoOpLogger when w is nil or
// min is LevelOff.
func New(min Level, w io.Writer) Logger {
	if w == nil || min >= LevelOff {
		return NoOpLogger{}
	}
	return NewStdLogger(min, w)
}

// NoOpLogger discards every entry.
type NoOpLogger struct{}

func (NoOpLogger) Debug(context.Context, string, ...Field)        {}
func (NoOpLogger) Info(context.Context, string, ...Field)         {}
func (NoOpLogger) Warn(context.Context, string, ...Field)         {}
func (NoOpLogger) Error(context.Context, string, error, ...Field) {}
func (n NoOpLogger) WithFields(...Field) Logger                   { return n }

// StdLogger formats entries onto a *log.Logger.
type StdLogger struct {
	min    Level
	fields []Field
	out    *log.Logger
	clock  func() time.Time
}

// NewStdLogger logs entries at min and above to w. A nil w discards output.
func NewStdLogger(min Level, w io.Writer) *StdLogger {
	if w == nil {
		w = io.Discard
	}
	return &StdLogger{min: min, out: log.New(w, "", 0), clock: time.Now}
}

func (s *StdLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	s.write(ctx, LevelDebug, msg, nil, fields)
}

func (s *StdLogger) Info(ctx context.Context, msg string, fields ...Field) {
	s.write(ctx, LevelInfo, msg, nil, fields)
}

func (s *StdLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	s.write(ctx, LevelWarn, msg, nil, fields)
}

func (s *StdLogger) Error(ctx context.Context, msg string, err error, fields ...Field) {
	s.write(ctx, LevelError, msg, err, fields)
}

// WithFields returns a child logger that prepends fields to every entry.
func (s *StdLogger) WithFields(fields ...Field) Logger {
	child := *s
	child.fields = append(append(make([]Field, 0, len(s.fields)+len(fields)), s.fields...), fields...)
	return &child
}

func (s *StdLogger) write(ctx context.Context, level Level, msg string, err error, fields []Field) {
	if level < s.min || s.min >= LevelOff {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s]", s.clock().Format(time.RFC3339), level)
	if err != nil {
		fmt.Fprintf(&b, " [error=%q]", err.Error())
	}
	b.WriteString(" ")
	b.WriteString(msg)

	all := s.fields
	if len(fields) > 0 {
		all = append(append(make([]Field, 0, len(s.fields)+len(fields)), s.fields...), fields...)
	}
	runID := RunID(ctx)
	if len(all) > 0 || runID != "" {
		b.WriteString(" fields=[")
		for i, f := range all {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%s=%v", f.Key, f.Value)
		}
		if runID != "" {
			if len(all) > 0 {
				b.WriteByte(' ')
			}
			b.WriteString("run_id=" + runID)
		}
		b.WriteByte(']')
	}
	s.out.Println(b.String())
}

type runIDKey struct{}

// WithRunID stores a run ID in ctx for log correlation.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run ID stored in ctx, if any.
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// NewRunID derives a run ID from the current time.
func NewRunID() string {
	return fmt.Sprintf("%x", time.Now().UnixNano())
}
