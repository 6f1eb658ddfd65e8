package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// index renders the dashboard of recent problems
func (s *Server) index(c *gin.Context) {
	rows, err := s.problems.Dashboard(c.Request.Context(), s.cfg.Display.RecentProblems)
	if err != nil {
		HandleRequestError(c, err)
		return
	}
	render(c, http.StatusOK, "index.html", gin.H{"Title": "home", "Problems": rows})
}

func (s *Server) info(c *gin.Context) {
	tree, err := s.problems.InfoTree(c.Request.Context())
	if err != nil {
		HandleRequestError(c, err)
		return
	}
	render(c, http.StatusOK, "info.html", gin.H{"Title": "info", "Managers": tree})
}

func (s *Server) history(c *gin.Context) {
	steps, err := s.problems.History(c.Request.Context(), 0)
	if err != nil {
		HandleRequestError(c, err)
		return
	}
	render(c, http.StatusOK, "history.html", gin.H{"Title": "history", "Steps": steps})
}

// photo serves a stored report photo. Anything that does not resolve to a
// regular file under the uploads root is a 404.
func (s *Server) photo(c *gin.Context) {
	path, err := s.photos.Resolve(c.Param("path"))
	if err != nil {
		if !errors.Is(err, ErrOutsideRoot) {
			logRequestError(c, err)
		}
		apology(c, http.StatusNotFound, "file not found")
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		apology(c, http.StatusNotFound, "file not found")
		return
	}
	c.File(path)
}
