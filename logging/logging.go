// Package logging provides the logger handed to an actor system.
//
// There is no process-wide logger. A *Logger is built once from
// configuration and passed explicitly to the components that log; its level
// filter can be changed at runtime.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level orders log severities: silent < error < warning < info < debug < verbose.
// A logger set to some level emits every record at that level or below it in
// this ordering.
type Level int8

const (
	LevelSilent Level = iota
	LevelError
	LevelWarning
	LevelInfo
	LevelDebug
	LevelVerbose
)

// slog levels for the two rungs slog does not name.
const (
	slogVerbose = slog.Level(-8)
	slogSilent  = slog.Level(1 << 20)
)

var levelNames = map[Level]string{
	LevelSilent:  "silent",
	LevelError:   "error",
	LevelWarning: "warning",
	LevelInfo:    "info",
	LevelDebug:   "debug",
	LevelVerbose: "verbose",
}

// String returns the configuration token of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int8(l))
}

// Slog converts the level into a slog threshold.
func (l Level) Slog() slog.Level {
	switch l {
	case LevelSilent:
		return slogSilent
	case LevelError:
		return slog.LevelError
	case LevelWarning:
		return slog.LevelWarn
	case LevelInfo:
		return slog.LevelInfo
	case LevelDebug:
		return slog.LevelDebug
	default:
		return slogVerbose
	}
}

// ParseLevel decodes a configuration token. "warn", "trace" and "fatal" are
// accepted as aliases.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent", "off", "none":
		return LevelSilent, nil
	case "error", "fatal":
		return LevelError, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "verbose", "trace":
		return LevelVerbose, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Options controls how New builds the handler.
type Options struct {
	// Level is the initial filter
	Level Level

	// Format is "text" (default) or "json"
	Format string

	// Output defaults to os.Stdout
	Output io.Writer
}

// Logger is a slog.Logger with a runtime-adjustable filter.
type Logger struct {
	*slog.Logger
	filter *slog.LevelVar
}

// New creates a Logger.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	filter := new(slog.LevelVar)
	filter.Set(opts.Level.Slog())

	hopts := &slog.HandlerOptions{
		Level:       filter,
		ReplaceAttr: replaceLevel,
	}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(out, hopts)
	} else {
		h = slog.NewTextHandler(out, hopts)
	}

	return &Logger{Logger: slog.New(h), filter: filter}
}

// Open resolves an output name ("stdout", "stderr" or a file path) and
// builds a Logger on it. The returned closer releases the file, if any.
func Open(level, format, output string) (*Logger, io.Closer, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer
	closer := io.Closer(nopCloser{})
	switch output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log output %s: %w", output, err)
		}
		out = f
		closer = f
	}

	return New(Options{Level: lvl, Format: format, Output: out}), closer, nil
}

// Discard returns a Logger that drops every record.
func Discard() *Logger {
	return New(Options{Level: LevelSilent, Output: io.Discard})
}

// SetLevel changes the filter for every logger derived from l.
func (l *Logger) SetLevel(level Level) {
	l.filter.Set(level.Slog())
}

// Level returns the current filter.
func (l *Logger) Level() Level {
	switch v := l.filter.Level(); {
	case v >= slogSilent:
		return LevelSilent
	case v >= slog.LevelError:
		return LevelError
	case v >= slog.LevelWarn:
		return LevelWarning
	case v >= slog.LevelInfo:
		return LevelInfo
	case v >= slog.LevelDebug:
		return LevelDebug
	default:
		return LevelVerbose
	}
}

// Verbose logs below debug.
func (l *Logger) Verbose(msg string, args ...any) {
	l.Logger.Log(context.Background(), slogVerbose, msg, args...)
}

// With returns a Logger sharing l's filter.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), filter: l.filter}
}

func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= slogVerbose {
		a.Value = slog.StringValue("VERBOSE")
	}
	return a
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
