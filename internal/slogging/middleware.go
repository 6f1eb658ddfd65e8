package slogging

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
)

// requestAttrs describes the request being served
func requestAttrs(c *gin.Context) []slog.Attr {
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	return []slog.Attr{
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("route", route),
	}
}

// LoggerMiddleware binds a request logger to the context and logs each
// completed request at a level chosen by its status code
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := Get().WithContext(c)
		c.Set(LoggerKey, logger)
		logger.DebugCtx("Request started", slog.String("user_agent", c.GetHeader("User-Agent")))

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := append(requestAttrs(c),
			slog.Int("status_code", status),
			slog.Duration("duration", time.Since(start)),
			slog.Int("response_size", c.Writer.Size()),
		)
		if userID, ok := c.Get(UserIDKey); ok {
			attrs = append(attrs, slog.Any("user_id", userID))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.ErrorCtx("Request completed with server error", attrs...)
		case status >= http.StatusBadRequest:
			logger.WarnCtx("Request completed with client error", attrs...)
		default:
			logger.InfoCtx("Request completed", attrs...)
		}
	}
}

// Recoverer turns a handler panic into a logged 500
func Recoverer() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if v := recover(); v != nil {
				attrs := append(requestAttrs(c),
					slog.Any("panic_value", v),
					slog.String("stack_trace", string(debug.Stack())),
				)
				GetContextLogger(c).ErrorCtx("Panic recovered", attrs...)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// PerformanceMiddleware warns about requests slower than threshold
func PerformanceMiddleware(threshold time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if elapsed := time.Since(start); elapsed > threshold {
			attrs := append(requestAttrs(c),
				slog.Duration("duration", elapsed),
				slog.Duration("threshold", threshold),
				slog.Int("status_code", c.Writer.Status()),
			)
			GetContextLogger(c).WarnCtx("Slow request detected", attrs...)
		}
	}
}
