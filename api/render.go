package api

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	ginrender "github.com/gin-gonic/gin/render"

	"github.com/unimak/dftrack/api/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"date":     formatDate,
	"datetime": formatDateTime,
	"deref":    deref,
	"photoURL": PhotoURL,
	"statuses": models.StepStatuses,
	"langs":    func() []string { return models.SupportedLanguages },
}

var pageTemplates = template.Must(
	template.New("pages").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html"),
)

// formatDate accepts time.Time and *time.Time; nil renders empty
func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format(dateLayout)
	case *time.Time:
		if t != nil {
			return t.Format(dateLayout)
		}
	}
	return ""
}

func formatDateTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// render executes a page template. Every page gets the session, the pending
// flashes and a translator for the session language.
func render(c *gin.Context, status int, name string, data gin.H) {
	session := CurrentSession(c)
	if data == nil {
		data = gin.H{}
	}
	data["Session"] = session
	data["Tr"] = NewTranslator(session.Language)
	if m, ok := c.Get(sessionManagerKey); ok {
		data["Flashes"] = m.(*SessionManager).PopFlashes(c)
	} else {
		data["Flashes"] = session.PopFlashes()
	}
	c.Render(status, ginrender.HTML{Template: pageTemplates, Name: name, Data: data})
}

// apology renders the error page with the status code and message
func apology(c *gin.Context, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	render(c, status, "apology.html", gin.H{
		"Code":    status,
		"Message": message,
	})
}
