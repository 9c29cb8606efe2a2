package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/pterm/pterm"
)

// Log output formats.
const (
	FormatConsole = "console"
	FormatText    = "text"
	FormatPretty  = "pretty"
)

// DefaultLogger writes either pterm console lines or slog records.
type DefaultLogger struct {
	level   LogLevel
	format  string
	handler *slog.Logger
	output  io.Writer
	attrs   []any
}

func NewDefaultLogger(output io.Writer, level LogLevel, format string) *DefaultLogger {
	var slogLevel slog.Level
	switch level {
	case LevelTrace, LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	var handler slog.Handler
	switch format {
	case FormatPretty:
		handler = tint.NewHandler(output, &tint.Options{Level: slogLevel, TimeFormat: time.Kitchen})
	default:
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: slogLevel})
	}
	if format == "" {
		format = FormatConsole
	}

	return &DefaultLogger{
		level:   level,
		format:  format,
		handler: slog.New(handler),
		output:  output,
	}
}

func (l *DefaultLogger) Trace(msg string, args ...any) {
	if l.level <= LevelTrace {
		l.emit(pterm.Debug, slog.LevelDebug, "TRACE: "+msg, args)
	}
}

func (l *DefaultLogger) Debug(msg string, args ...any) {
	if l.level <= LevelDebug {
		l.emit(pterm.Debug, slog.LevelDebug, msg, args)
	}
}

func (l *DefaultLogger) Info(msg string, args ...any) {
	if l.level <= LevelInfo {
		l.emit(pterm.Info, slog.LevelInfo, msg, args)
	}
}

func (l *DefaultLogger) Warn(msg string, args ...any) {
	if l.level <= LevelWarn {
		l.emit(pterm.Warning, slog.LevelWarn, msg, args)
	}
}

func (l *DefaultLogger) Error(msg string, args ...any) {
	if l.level <= LevelError {
		l.emit(pterm.Error, slog.LevelError, msg, args)
	}
}

func (l *DefaultLogger) With(args ...any) Logger {
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, args...)
	return &DefaultLogger{
		level:   l.level,
		format:  l.format,
		handler: l.handler.With(args...),
		output:  l.output,
		attrs:   attrs,
	}
}

func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *DefaultLogger) emit(printer pterm.PrefixPrinter, level slog.Level, msg string, args []any) {
	if l.format != FormatConsole {
		l.handler.Log(context.Background(), level, msg, args...)
		return
	}
	// pterm debug lines are hidden unless debug messages are enabled globally.
	if level == slog.LevelDebug {
		printer = *printer.WithDebugger(false)
	}
	printer.WithWriter(l.output).Println(msg + formatAttrs(append(append([]any{}, l.attrs...), args...)))
}

func formatAttrs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fmt.Fprintf(&b, " %v", args[i])
			break
		}
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}
