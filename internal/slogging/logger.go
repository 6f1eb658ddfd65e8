// Package slogging is the application logger: log/slog records written as
// JSON (or text in dev mode) to a rotating file, with credential redaction
// and log injection sanitizing.
package slogging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents logging verbosity
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var levels = []struct {
	name  string
	slog  slog.Level
	alias string
}{
	LogLevelDebug: {"DEBUG", slog.LevelDebug, ""},
	LogLevelInfo:  {"INFO", slog.LevelInfo, ""},
	LogLevelWarn:  {"WARN", slog.LevelWarn, "WARNING"},
	LogLevelError: {"ERROR", slog.LevelError, ""},
}

const (
	defaultLogDir   = "logs"
	defaultFileName = "unimak.log"
)

var globalLogger *Logger

// ParseLogLevel converts a configured level name. Unknown names mean info.
func ParseLogLevel(level string) LogLevel {
	level = strings.ToUpper(strings.TrimSpace(level))
	for i, l := range levels {
		if level == l.name || (l.alias != "" && level == l.alias) {
			return LogLevel(i)
		}
	}
	return LogLevelInfo
}

func (l LogLevel) valid() bool { return l >= LogLevelDebug && int(l) < len(levels) }

// String returns the upper case level name
func (l LogLevel) String() string {
	if !l.valid() {
		return "UNKNOWN"
	}
	return levels[l].name
}

func (l LogLevel) toSlogLevel() slog.Level {
	if !l.valid() {
		return slog.LevelInfo
	}
	return levels[l].slog
}

// Config holds configuration options for the logger
type Config struct {
	Level LogLevel
	// IsDev selects the text handler and adds file:line to each record
	IsDev            bool
	LogDir           string
	FileName         string
	MaxAgeDays       int
	MaxSizeMB        int
	MaxBackups       int
	AlsoLogToConsole bool
	// RedactionConfig defaults to DefaultRedactionConfig when nil
	RedactionConfig *RedactionConfig
	// Output replaces the file and console writers when set
	Output io.Writer
}

func (c *Config) applyDefaults() {
	if c.LogDir == "" {
		c.LogDir = defaultLogDir
	}
	if c.FileName == "" {
		c.FileName = defaultFileName
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 7
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 100
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 10
	}
}

// Logger writes printf-style and structured records through slog
type Logger struct {
	slogger    *slog.Logger
	level      LogLevel
	fileLogger *lumberjack.Logger
}

// NewLogger builds a logger from config. Without Output the records go to a
// lumberjack rotated file under LogDir, and to stdout as well when asked.
func NewLogger(config Config) (*Logger, error) {
	config.applyDefaults()

	writer := config.Output
	var fileLogger *lumberjack.Logger
	if writer == nil {
		if err := os.MkdirAll(config.LogDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		fileLogger = &lumberjack.Logger{
			Filename:   filepath.Join(config.LogDir, config.FileName),
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
			Compress:   true,
		}
		writer = fileLogger
		if config.AlsoLogToConsole {
			writer = io.MultiWriter(os.Stdout, fileLogger)
		}
	}

	opts := &slog.HandlerOptions{
		Level: config.Level.toSlogLevel(),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if t, ok := a.Value.Any().(time.Time); ok && a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, t.Format(time.RFC3339))
			}
			return a
		},
	}
	var handler slog.Handler = slog.NewJSONHandler(writer, opts)
	if config.IsDev {
		handler = slog.NewTextHandler(writer, opts)
	}

	redaction := DefaultRedactionConfig()
	if config.RedactionConfig != nil {
		redaction = *config.RedactionConfig
	}
	handler, err := NewRedactionHandler(handler, redaction)
	if err != nil {
		return nil, fmt.Errorf("failed to create redaction handler: %w", err)
	}
	if config.IsDev {
		handler = &sourceHandler{handler: handler}
	}

	return &Logger{slogger: slog.New(handler), level: config.Level, fileLogger: fileLogger}, nil
}

// sourceHandler adds the file:line of the logging call in dev mode
type sourceHandler struct {
	handler slog.Handler
}

func (h *sourceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *sourceHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		record.Add(slog.String("source", fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)))
	}
	return h.handler.Handle(ctx, record)
}

func (h *sourceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sourceHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *sourceHandler) WithGroup(name string) slog.Handler {
	return &sourceHandler{handler: h.handler.WithGroup(name)}
}

// Initialize replaces the global logger and slog's default
func Initialize(config Config) error {
	logger, err := NewLogger(config)
	if err != nil {
		return err
	}
	globalLogger = logger
	slog.SetDefault(logger.slogger)
	return nil
}

// Get returns the global logger. Before Initialize it lazily creates an info
// logger under UNIMAK_LOG_DIR, falling back to stdout.
func Get() *Logger {
	if globalLogger != nil {
		return globalLogger
	}
	logDir := os.Getenv("UNIMAK_LOG_DIR")
	if err := Initialize(Config{Level: LogLevelInfo, LogDir: logDir, AlsoLogToConsole: true}); err != nil {
		handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
		globalLogger = &Logger{slogger: slog.New(handler), level: LogLevelInfo}
	}
	return globalLogger
}

// Close flushes and closes the rotating log file
func (l *Logger) Close() error {
	if l.fileLogger == nil {
		return nil
	}
	if err := l.fileLogger.Close(); err != nil {
		return fmt.Errorf("file logger close: %w", err)
	}
	return nil
}

// logf formats and sanitizes a printf-style message (CWE-117). The record
// carries the pc of the code that called Debug, Info, Warn or Error.
func logf(s *slog.Logger, threshold, level LogLevel, format string, args []any) {
	ctx := context.Background()
	if threshold > level || !s.Enabled(ctx, level.toSlogLevel()) {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	record := slog.NewRecord(time.Now(), level.toSlogLevel(), SanitizeLogMessage(msg), pcs[0])
	_ = s.Handler().Handle(ctx, record)
}

func (l *Logger) Debug(format string, args ...any) { logf(l.slogger, l.level, LogLevelDebug, format, args) }
func (l *Logger) Info(format string, args ...any)  { logf(l.slogger, l.level, LogLevelInfo, format, args) }
func (l *Logger) Warn(format string, args ...any)  { logf(l.slogger, l.level, LogLevelWarn, format, args) }
func (l *Logger) Error(format string, args ...any) { logf(l.slogger, l.level, LogLevelError, format, args) }

// DebugCtx logs a structured record
func (l *Logger) DebugCtx(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.slogger.LogAttrs(ctx, slog.LevelDebug, SanitizeLogMessage(msg), attrs...)
}

func (l *Logger) InfoCtx(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.slogger.LogAttrs(ctx, slog.LevelInfo, SanitizeLogMessage(msg), attrs...)
}

func (l *Logger) WarnCtx(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.slogger.LogAttrs(ctx, slog.LevelWarn, SanitizeLogMessage(msg), attrs...)
}

func (l *Logger) ErrorCtx(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.slogger.LogAttrs(ctx, slog.LevelError, SanitizeLogMessage(msg), attrs...)
}

// GetSlogger returns the underlying slog.Logger
func (l *Logger) GetSlogger() *slog.Logger {
	return l.slogger
}
