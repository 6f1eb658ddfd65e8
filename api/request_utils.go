package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/unimak/dftrack/internal/slogging"
)

// genericErrorMessage is all a user ever sees of an unclassified failure
const genericErrorMessage = "Something went wrong, please try again"

// RequestError is an expected failure with a status and a user-facing message
type RequestError struct {
	Status  int
	Code    string
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// InvalidInputError creates a RequestError for validation failures
func InvalidInputError(message string) *RequestError {
	return &RequestError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_input",
		Message: message,
	}
}

// NotFoundError creates a RequestError for resource not found
func NotFoundError(message string) *RequestError {
	return &RequestError{
		Status:  http.StatusNotFound,
		Code:    "not_found",
		Message: message,
	}
}

// ServerError creates a RequestError for internal server errors
func ServerError(message string) *RequestError {
	return &RequestError{
		Status:  http.StatusInternalServerError,
		Code:    "server_error",
		Message: message,
	}
}

// ForbiddenError creates a RequestError for forbidden access
func ForbiddenError(message string) *RequestError {
	return &RequestError{
		Status:  http.StatusForbidden,
		Code:    "forbidden",
		Message: message,
	}
}

// ConflictError creates a RequestError for integrity conflicts
func ConflictError(message string) *RequestError {
	return &RequestError{
		Status:  http.StatusConflict,
		Code:    "conflict",
		Message: message,
	}
}

// AsRequestError classifies err. Anything that is not already a RequestError
// becomes a server error carrying only the generic message.
func AsRequestError(err error) *RequestError {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr
	}
	return ServerError(genericErrorMessage)
}

// logRequestError records the full cause of err on the request logger.
// Expected failures are logged at warn, everything else at error.
func logRequestError(c *gin.Context, err error) *RequestError {
	logger := slogging.GetContextLogger(c)
	reqErr := AsRequestError(err)
	attrs := []slog.Attr{
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", reqErr.Status),
		slog.String("code", reqErr.Code),
		slog.String("error", err.Error()),
	}
	if reqErr.Status >= http.StatusInternalServerError {
		logger.ErrorCtx("request failed", attrs...)
	} else {
		logger.WarnCtx("request rejected", attrs...)
	}
	return reqErr
}

// HandleRequestError renders the apology page with the error's status
func HandleRequestError(c *gin.Context, err error) {
	reqErr := logRequestError(c, err)
	apology(c, reqErr.Status, reqErr.Message)
}

// isUniqueConstraintError checks if the error is a unique index violation on any backend
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite, oracle wording
		strings.Contains(msg, "duplicate key") || // postgres, sqlserver
		strings.Contains(msg, "duplicate entry") || // mysql
		strings.Contains(msg, "violation of unique key") ||
		strings.Contains(msg, "ora-00001")
}

// isForeignKeyConstraintError checks if the error is a foreign key constraint violation
func isForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "foreign key constraint") ||
		strings.Contains(msg, "violates foreign key") ||
		strings.Contains(msg, "ora-02291") ||
		strings.Contains(msg, "ora-02292")
}

// parseID parses a required positive integer form or query value
func parseID(raw, field string) (uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, InvalidInputError(fmt.Sprintf("%s is required", field))
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, InvalidInputError(fmt.Sprintf("%s must be a positive number", field))
	}
	return uint(n), nil
}

// parseOptionalID parses a positive integer that may be absent
func parseOptionalID(raw, field string) (*uint, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseID(raw, field)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// optionalString returns nil for blank input and the trimmed value otherwise
func optionalString(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return &raw
}
