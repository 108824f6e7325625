package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Slog returns a log/slog.Logger backed by this logger's formatter/outputs,
// used to capture output from packages (e.g. Pebble) that only know stdlib
// logging conventions.
func (l *BaseLogger) Slog() *slog.Logger {
	if l.slogLogger == nil {
		l.slogLogger = slog.New(newBridgeHandler(l))
	}
	return l.slogLogger
}

func (l *BaseLogger) log(level Level, msg string, extra Fields) {
	if level < l.level {
		return
	}
	entry := &Entry{
		Level:   level,
		Message: msg,
		Fields:  mergeFields(l.fields, extra),
	}
	formatted, err := l.formatter.Format(entry)
	if err != nil {
		return
	}
	for _, out := range l.outputs {
		_ = out.Write(entry, formatted)
	}
	if level == FatalLevel {
		os.Exit(1)
	}
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fieldsToMap(fields)) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fieldsToMap(fields)) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fieldsToMap(fields)) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fieldsToMap(fields)) }
func (l *BaseLogger) Fatal(msg string, fields ...Field) { l.log(FatalLevel, msg, fieldsToMap(fields)) }

func (l *BaseLogger) Debugf(msg string, args ...interface{}) { l.log(DebugLevel, fmt.Sprintf(msg, args...), nil) }
func (l *BaseLogger) Infof(msg string, args ...interface{})  { l.log(InfoLevel, fmt.Sprintf(msg, args...), nil) }
func (l *BaseLogger) Warnf(msg string, args ...interface{})  { l.log(WarnLevel, fmt.Sprintf(msg, args...), nil) }
func (l *BaseLogger) Errorf(msg string, args ...interface{}) { l.log(ErrorLevel, fmt.Sprintf(msg, args...), nil) }
func (l *BaseLogger) Fatalf(msg string, args ...interface{}) { l.log(FatalLevel, fmt.Sprintf(msg, args...), nil) }

func (l *BaseLogger) clone() *BaseLogger {
	nl := &BaseLogger{
		level:     l.level,
		fields:    mergeFields(l.fields, nil),
		formatter: l.formatter,
		outputs:   l.outputs,
	}
	nl.slogLogger = nil
	return nl
}

func (l *BaseLogger) WithField(key string, value interface{}) Logger {
	nl := l.clone()
	nl.fields[key] = value
	return nl
}

func (l *BaseLogger) WithFields(fields Fields) Logger {
	nl := l.clone()
	for k, v := range fields {
		nl.fields[k] = v
	}
	return nl
}

func (l *BaseLogger) WithError(err error) Logger {
	return l.WithField("error", errString(err))
}

func (l *BaseLogger) With(fields ...Field) Logger {
	nl := l.clone()
	for k, v := range fieldsToMap(fields) {
		nl.fields[k] = v
	}
	return nl
}

func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	return l.WithFields(ContextExtractor(ctx))
}

func (l *BaseLogger) WithComponent(component string) Logger {
	return l.WithField(ComponentKey, component)
}

func (l *BaseLogger) SetLevel(level Level) { l.level = level }
func (l *BaseLogger) GetLevel() Level      { return l.level }

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
