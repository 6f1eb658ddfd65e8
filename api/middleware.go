package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// contentSecurityPolicy allows only same-origin assets; templates carry no inline script
const contentSecurityPolicy = "default-src 'self'; img-src 'self' data:; style-src 'self'; script-src 'self'; frame-ancestors 'none'; form-action 'self'"

// NoCacheHeaders marks every response as not cacheable
func NoCacheHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		h.Set("Expires", "0")
		h.Set("Pragma", "no-cache")
		c.Next()
	}
}

// SecurityHeaders sets the browser hardening headers. HSTS is only sent when
// the server terminates TLS itself.
func SecurityHeaders(tlsEnabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "0")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		h.Set("Permissions-Policy", "camera=(self), geolocation=(), microphone=()")
		if tlsEnabled {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// ContextTimeout adds a timeout to the request context
func ContextTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireLogin redirects anonymous requests to the login page
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentSession(c).LoggedIn() {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin answers 403 for users without the admin role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := CurrentSession(c)
		if !session.LoggedIn() {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		if !session.IsAdmin() {
			HandleRequestError(c, ForbiddenError("administrators only"))
			c.Abort()
			return
		}
		c.Next()
	}
}
