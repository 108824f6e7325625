package log

import (
	"fmt"
	stdlog "log"
	"strings"
)

// Config describes how to build a process-wide Logger from simple strings,
// typically sourced from flags or environment variables.
type Config struct {
	Level  string
	Format string
}

// ParseLevel parses a case-insensitive level name. An empty string is an
// error; callers that want a default should check for "" before calling.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// ApplyConfig builds a Logger from a Config, defaulting level=info when
// unset and format=text when unset or not "json". An unrecognised level
// is returned as an error.
func ApplyConfig(cfg *Config) (Logger, error) {
	level := InfoLevel
	if cfg != nil && cfg.Level != "" {
		if l, err := ParseLevel(cfg.Level); err == nil {
			level = l
		} else {
			return nil, err
		}
	}
	var formatter Formatter = &TextFormatter{}
	if cfg != nil && strings.EqualFold(cfg.Format, "json") {
		formatter = &JSONFormatter{}
	}
	return NewLogger(
		WithLevel(level),
		WithFormatter(formatter),
		WithOutput(NewConsoleOutput()),
	), nil
}

// RedirectStdLog points the standard library's "log" package output through
// the given Logger, so dependencies that only know stdlib logging (e.g.
// Pebble) still flow through our structured pipeline.
func RedirectStdLog(logger Logger) {
	base, ok := logger.(*BaseLogger)
	if !ok {
		return
	}
	stdlog.SetFlags(0)
	stdlog.SetOutput(slogWriter{l: base})
}

// slogWriter adapts io.Writer to the Logger, used only for stdlib redirection.
type slogWriter struct{ l *BaseLogger }

func (w slogWriter) Write(p []byte) (int, error) {
	w.l.Info(strings.TrimRight(string(p), "\n"), Component("pebble"))
	return len(p), nil
}
