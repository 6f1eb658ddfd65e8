package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unimak/dftrack/api/models"
	"github.com/unimak/dftrack/internal/slogging"
)

// gin keys for the request's session and the manager that loaded it
const (
	sessionContextKey = "session"
	sessionManagerKey = "session_manager"
)

// SessionManager binds sessions to requests through the session cookie
type SessionManager struct {
	store      SessionStore
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewSessionManager creates a session manager
func NewSessionManager(store SessionStore, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{store: store, cookieName: cookieName, ttl: ttl, secure: secure}
}

// Middleware loads the session named by the cookie. Requests without one get
// an unsaved anonymous session; it is persisted only when written to.
func (m *SessionManager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := &Session{}
		if id, err := c.Cookie(m.cookieName); err == nil && id != "" {
			loaded, err := m.store.Get(c.Request.Context(), id)
			if err != nil {
				slogging.GetContextLogger(c).Error("session lookup failed: %v", err)
			} else if loaded != nil {
				session = loaded
			}
		}
		c.Set(sessionContextKey, session)
		c.Set(sessionManagerKey, m)
		if session.LoggedIn() {
			c.Set(slogging.UserIDKey, session.UserID)
			c.Set(slogging.UserNameKey, session.Username)
		}
		c.Next()
	}
}

// CurrentSession returns the session of the request, never nil
func CurrentSession(c *gin.Context) *Session {
	if v, ok := c.Get(sessionContextKey); ok {
		if s, ok := v.(*Session); ok {
			return s
		}
	}
	s := &Session{}
	c.Set(sessionContextKey, s)
	return s
}

// Flash queues a message on the session and saves it
func (m *SessionManager) Flash(c *gin.Context, category, message string) {
	session := CurrentSession(c)
	session.AddFlash(category, message)
	m.persist(c, session)
}

// PopFlashes drains the queued messages for rendering
func (m *SessionManager) PopFlashes(c *gin.Context) []Flash {
	session := CurrentSession(c)
	if len(session.Flashes) == 0 {
		return nil
	}
	flashes := session.PopFlashes()
	m.persist(c, session)
	return flashes
}

// Login replaces the request's session with a fresh one for user
func (m *SessionManager) Login(c *gin.Context, user *models.User) error {
	ctx := c.Request.Context()
	old := CurrentSession(c)
	if old.ID != "" {
		if err := m.store.Destroy(ctx, old.ID); err != nil {
			slogging.GetContextLogger(c).Warn("failed to destroy previous session: %v", err)
		}
	}

	session, err := m.store.Create(ctx)
	if err != nil {
		return err
	}
	session.UserID = user.ID
	session.Username = user.Username
	session.Role = user.Role
	session.Language = user.Language
	if err := m.store.Save(ctx, session); err != nil {
		return err
	}

	c.Set(sessionContextKey, session)
	c.Set(slogging.UserIDKey, session.UserID)
	c.Set(slogging.UserNameKey, session.Username)
	m.setCookie(c, session.ID, int(m.ttl.Seconds()))
	return nil
}

// Clear destroys the session and expires the cookie
func (m *SessionManager) Clear(c *gin.Context) {
	session := CurrentSession(c)
	if session.ID != "" {
		if err := m.store.Destroy(c.Request.Context(), session.ID); err != nil {
			slogging.GetContextLogger(c).Warn("failed to destroy session: %v", err)
		}
	}
	c.Set(sessionContextKey, &Session{})
	m.setCookie(c, "", -1)
}

// Update saves changes made to the current session
func (m *SessionManager) Update(c *gin.Context) {
	m.persist(c, CurrentSession(c))
}

func (m *SessionManager) persist(c *gin.Context, session *Session) {
	ctx := c.Request.Context()
	if session.ID == "" {
		created, err := m.store.Create(ctx)
		if err != nil {
			slogging.GetContextLogger(c).Error("failed to create session: %v", err)
			return
		}
		session.ID = created.ID
		m.setCookie(c, session.ID, int(m.ttl.Seconds()))
	}
	if err := m.store.Save(ctx, session); err != nil {
		slogging.GetContextLogger(c).Error("failed to save session: %v", err)
	}
}

func (m *SessionManager) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, value, maxAge, "/", "", m.secure, true)
}
