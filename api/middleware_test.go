package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimak/dftrack/api/models"
)

// runWithSession serves one GET through the middleware with session preset
func runWithSession(t *testing.T, session *Session, middleware gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(sessionContextKey, session)
		c.Next()
	})
	r.Use(middleware)
	r.GET("/target", func(c *gin.Context) { c.String(http.StatusOK, "reached") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/target", nil))
	return w
}

func TestNoCacheHeaders(t *testing.T) {
	w := runWithSession(t, &Session{}, NoCacheHeaders())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))
	assert.Equal(t, "0", w.Header().Get("Expires"))
	assert.Equal(t, "no-cache", w.Header().Get("Pragma"))
}

func TestSecurityHeaders(t *testing.T) {
	for _, tlsEnabled := range []bool{false, true} {
		w := runWithSession(t, &Session{}, SecurityHeaders(tlsEnabled))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
		assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'self'")
		if tlsEnabled {
			assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=")
		} else {
			assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
		}
	}
}

func TestRequireLogin(t *testing.T) {
	w := runWithSession(t, &Session{}, RequireLogin())
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = runWithSession(t, &Session{UserID: 1, Username: "alice", Role: models.RoleUser}, RequireLogin())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "reached", w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	w := runWithSession(t, &Session{}, RequireAdmin())
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = runWithSession(t, &Session{UserID: 1, Role: models.RoleUser}, RequireAdmin())
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "administrators only")
	assert.NotContains(t, w.Body.String(), "reached")

	w = runWithSession(t, &Session{UserID: 1, Role: models.RoleAdmin}, RequireAdmin())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestContextTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ContextTimeout(50 * time.Millisecond))
	var deadline time.Time
	var ok bool
	r.GET("/", func(c *gin.Context) {
		deadline, ok = c.Request.Context().Deadline()
		<-c.Request.Context().Done()
		assert.ErrorIs(t, c.Request.Context().Err(), context.DeadlineExceeded)
		c.Status(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, ok)
	assert.False(t, deadline.IsZero())
}
