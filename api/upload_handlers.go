package api

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/unimak/dftrack/api/models"
	"github.com/unimak/dftrack/internal/slogging"
)

// groupOption is a group entry of the cascading upload dropdown
type groupOption struct {
	ID          uint   `json:"id"`
	GroupNumber string `json:"group_number"`
	GroupName   string `json:"group_name"`
}

// componentOption is a component entry of the cascading upload dropdown
type componentOption struct {
	ID            uint   `json:"id"`
	ComponentNo   string `json:"component_no"`
	ComponentName string `json:"component_name"`
}

// uploadForm renders the report form. A project_id or group_id query
// preselects the cascade so the form also works without scripts.
func (s *Server) uploadForm(c *gin.Context) {
	ctx := c.Request.Context()
	projects, err := s.projects.List(ctx)
	if err != nil {
		HandleRequestError(c, err)
		return
	}

	data := gin.H{
		"Title":       "upload",
		"Projects":    projects,
		"ProjectID":   uint(0),
		"GroupID":     uint(0),
		"Reasons":     models.Reasons().Options(),
		"Departments": models.Departments().Options(),
		"Actions":     models.Actions().Options(),
		"Priorities":  models.Priorities().Options(),
	}

	projectID, err := parseOptionalID(c.Query("project_id"), "project_id")
	if err != nil {
		HandleRequestError(c, err)
		return
	}
	if projectID != nil {
		groups, err := s.projects.ListGroups(ctx, *projectID)
		if err != nil {
			HandleRequestError(c, err)
			return
		}
		data["ProjectID"] = *projectID
		data["Groups"] = groups

		groupID, err := parseOptionalID(c.Query("group_id"), "group_id")
		if err != nil {
			HandleRequestError(c, err)
			return
		}
		if groupID != nil && lo.ContainsBy(groups, func(g models.Group) bool { return g.ID == *groupID }) {
			components, err := s.projects.ListComponents(ctx, *groupID)
			if err != nil {
				HandleRequestError(c, err)
				return
			}
			data["GroupID"] = *groupID
			data["Components"] = components
		}
	}

	render(c, http.StatusOK, "upload.html", data)
}

func (s *Server) uploadGroups(c *gin.Context) {
	projectID, err := parseID(c.Query("project_id"), "project_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": AsRequestError(err).Message})
		return
	}
	groups, err := s.projects.ListGroups(c.Request.Context(), projectID)
	if err != nil {
		reqErr := logRequestError(c, err)
		c.JSON(reqErr.Status, gin.H{"error": reqErr.Message})
		return
	}
	c.JSON(http.StatusOK, lo.Map(groups, func(g models.Group, _ int) groupOption {
		return groupOption{ID: g.ID, GroupNumber: g.GroupNumber, GroupName: g.GroupName}
	}))
}

func (s *Server) uploadComponents(c *gin.Context) {
	groupID, err := parseID(c.Query("group_id"), "group_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": AsRequestError(err).Message})
		return
	}
	components, err := s.projects.ListComponents(c.Request.Context(), groupID)
	if err != nil {
		reqErr := logRequestError(c, err)
		c.JSON(reqErr.Status, gin.H{"error": reqErr.Message})
		return
	}
	c.JSON(http.StatusOK, lo.Map(components, func(m models.Component, _ int) componentOption {
		return componentOption{ID: m.ID, ComponentNo: m.ComponentNo, ComponentName: m.ComponentName}
	}))
}

// upload records a DF report from the multipart form
func (s *Server) upload(c *gin.Context) {
	if s.cfg.Uploads.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.Uploads.MaxBytes)
	}
	form, err := c.MultipartForm()
	if err != nil {
		slogging.GetContextLogger(c).Warn("unreadable upload form: %v", err)
		s.redirectWithError(c, "/upload", InvalidInputError("the upload could not be read; check the photo sizes"))
		return
	}

	values := url.Values(form.Value)
	result, err := s.reports.CreateReport(c.Request.Context(), ReportInput{
		RecorderID:         CurrentSession(c).UserID,
		ProjectID:          values.Get("project_id"),
		GroupID:            values.Get("group_id"),
		PlannedClosingDate: values.Get("planned_closing_date"),
		Rows:               ParseComponentRows(values),
		Photos:             PhotoUploadsFromForm(form.File["photos"]),
	})
	if err != nil {
		s.redirectWithError(c, "/upload", err)
		return
	}

	s.sessions.Flash(c, FlashSuccess, fmt.Sprintf("Report %s saved with %d photo(s)", result.DFNumber, len(result.Photos)))
	c.Redirect(http.StatusFound, "/info")
}
