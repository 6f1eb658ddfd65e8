package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/unimak/dftrack/api/models"
	"github.com/unimak/dftrack/internal/slogging"
)

func (s *Server) loginForm(c *gin.Context) {
	render(c, http.StatusOK, "login.html", gin.H{"Title": "login"})
}

// login replaces whatever session the browser had with one for the user
func (s *Server) login(c *gin.Context) {
	if CurrentSession(c).ID != "" {
		s.sessions.Clear(c)
	}

	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	if username == "" {
		apology(c, http.StatusBadRequest, "must provide username")
		return
	}
	if password == "" {
		apology(c, http.StatusBadRequest, "must provide password")
		return
	}

	user, err := s.users.Authenticate(c.Request.Context(), username, password)
	if err != nil {
		HandleRequestError(c, err)
		return
	}
	if err := s.sessions.Login(c, user); err != nil {
		slogging.GetContextLogger(c).Error("failed to start session for %s: %v", user.Username, err)
		HandleRequestError(c, ServerError(genericErrorMessage))
		return
	}

	slogging.GetContextLogger(c).Info("user logged in: id=%d", user.ID)
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) registerForm(c *gin.Context) {
	render(c, http.StatusOK, "register.html", gin.H{"Title": "register"})
}

func (s *Server) register(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	confirmation := c.PostForm("confirmation")

	switch {
	case username == "":
		apology(c, http.StatusBadRequest, "must provide username")
		return
	case password == "":
		apology(c, http.StatusBadRequest, "must provide password")
		return
	case confirmation == "":
		apology(c, http.StatusBadRequest, "must confirm password")
		return
	case password != confirmation:
		apology(c, http.StatusBadRequest, "passwords do not match")
		return
	}

	role := models.RoleUser
	if s.cfg.IsAdminUsername(username) {
		role = models.RoleAdmin
	}
	language := PreferredLanguage(c.PostForm("language"), c.GetHeader("Accept-Language"))

	user, err := s.users.Create(c.Request.Context(), username, password, language, role)
	if err != nil {
		HandleRequestError(c, err)
		return
	}

	slogging.GetContextLogger(c).Info("user registered: id=%d, role=%s", user.ID, user.Role)
	s.sessions.Flash(c, FlashSuccess, "Registered! Please log in.")
	c.Redirect(http.StatusFound, "/login")
}

func (s *Server) logout(c *gin.Context) {
	s.sessions.Clear(c)
	c.Redirect(http.StatusFound, "/login")
}

func (s *Server) settingsForm(c *gin.Context) {
	render(c, http.StatusOK, "settings.html", gin.H{"Title": "settings"})
}

// settings stores the preferred language on the account and the session
func (s *Server) settings(c *gin.Context) {
	session := CurrentSession(c)
	user, err := s.users.SetLanguage(c.Request.Context(), session.UserID, c.PostForm("language"))
	if err != nil {
		s.redirectWithError(c, "/settings", err)
		return
	}

	session.Language = user.Language
	s.sessions.Update(c)
	s.sessions.Flash(c, FlashSuccess, "Settings saved")
	c.Redirect(http.StatusFound, "/settings")
}
