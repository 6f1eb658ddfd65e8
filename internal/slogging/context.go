package slogging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Gin context keys. The session middleware sets the user keys once the
// session is loaded.
const (
	LoggerKey   = "logger"
	UserIDKey   = "userID"
	UserNameKey = "userName"
)

const requestIDHeader = "X-Request-ID"

// ContextLogger is a Logger bound to one request: every record carries the
// request id and client ip
type ContextLogger struct {
	logger    *Logger
	slogger   *slog.Logger
	requestID string
}

// GetContextLogger returns the request logger stored by LoggerMiddleware, or
// binds a new one to c
func GetContextLogger(c *gin.Context) *ContextLogger {
	if v, ok := c.Get(LoggerKey); ok {
		if logger, ok := v.(*ContextLogger); ok {
			return logger.withUser(c)
		}
	}
	return Get().WithContext(c)
}

// WithContext binds the logger to a request. A missing X-Request-ID is
// generated and echoed on the response.
func (l *Logger) WithContext(c *gin.Context) *ContextLogger {
	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		c.Header(requestIDHeader, requestID)
	}
	cl := &ContextLogger{
		logger:    l,
		slogger:   l.slogger.With(slog.String("request_id", requestID), slog.String("client_ip", c.ClientIP())),
		requestID: requestID,
	}
	return cl.withUser(c)
}

// withUser adds the logged in user when the session middleware has run
func (cl *ContextLogger) withUser(c *gin.Context) *ContextLogger {
	name, ok := c.Get(UserNameKey)
	if !ok {
		return cl
	}
	return cl.WithAttrs(slog.String("user", fmt.Sprint(name)))
}

// RequestID returns the id attached to every record of this logger
func (cl *ContextLogger) RequestID() string {
	return cl.requestID
}

func (cl *ContextLogger) Debug(format string, args ...any) {
	logf(cl.slogger, cl.logger.level, LogLevelDebug, format, args)
}

func (cl *ContextLogger) Info(format string, args ...any) {
	logf(cl.slogger, cl.logger.level, LogLevelInfo, format, args)
}

func (cl *ContextLogger) Warn(format string, args ...any) {
	logf(cl.slogger, cl.logger.level, LogLevelWarn, format, args)
}

func (cl *ContextLogger) Error(format string, args ...any) {
	logf(cl.slogger, cl.logger.level, LogLevelError, format, args)
}

func (cl *ContextLogger) log(level slog.Level, msg string, attrs []slog.Attr) {
	cl.slogger.LogAttrs(context.Background(), level, SanitizeLogMessage(msg), attrs...)
}

// DebugCtx logs a structured record with the request attributes
func (cl *ContextLogger) DebugCtx(msg string, attrs ...slog.Attr) { cl.log(slog.LevelDebug, msg, attrs) }
func (cl *ContextLogger) InfoCtx(msg string, attrs ...slog.Attr)  { cl.log(slog.LevelInfo, msg, attrs) }
func (cl *ContextLogger) WarnCtx(msg string, attrs ...slog.Attr)  { cl.log(slog.LevelWarn, msg, attrs) }
func (cl *ContextLogger) ErrorCtx(msg string, attrs ...slog.Attr) { cl.log(slog.LevelError, msg, attrs) }

// WithAttrs returns a copy that adds attrs to every record
func (cl *ContextLogger) WithAttrs(attrs ...slog.Attr) *ContextLogger {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return &ContextLogger{logger: cl.logger, slogger: cl.slogger.With(args...), requestID: cl.requestID}
}
