package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/unimak/dftrack/api/models"
)

// adminPage lists every problem with components, steps and photos
func (s *Server) adminPage(c *gin.Context) {
	problems, err := s.problems.AdminListing(c.Request.Context())
	if err != nil {
		HandleRequestError(c, err)
		return
	}
	render(c, http.StatusOK, "admin.html", gin.H{"Title": "admin", "Problems": problems})
}

// adminAction dispatches the problem maintenance forms on their action field
func (s *Server) adminAction(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		message string
		err     error
	)

	switch action := c.PostForm("action"); action {
	case "update_status":
		var stepID uint
		if stepID, err = parseID(c.PostForm("step_id"), "step_id"); err != nil {
			break
		}
		var status models.StepStatus
		if status, err = parseStatus(c.PostForm("status")); err != nil {
			break
		}
		if err = s.problems.UpdateStepStatus(ctx, stepID, status); err == nil {
			message = "Status updated"
		}

	case "add_step":
		var in AddStepInput
		if in, err = addStepInput(c); err != nil {
			break
		}
		var step *models.ProblemStep
		if step, err = s.problems.AddStep(ctx, in); err == nil {
			message = fmt.Sprintf("Step %d added", step.StepNumber)
		}

	case "delete_step":
		var stepID uint
		if stepID, err = parseID(c.PostForm("step_id"), "step_id"); err != nil {
			break
		}
		if err = s.problems.DeleteStep(ctx, stepID); err == nil {
			message = "Step deleted"
		}

	case "delete_component":
		var id uint
		if id, err = parseID(c.PostForm("problem_component_id"), "problem_component_id"); err != nil {
			break
		}
		if err = s.problems.DeleteProblemComponent(ctx, id); err == nil {
			message = "Component removed from problem"
		}

	case "delete_problem":
		var id uint
		if id, err = parseID(c.PostForm("problem_id"), "problem_id"); err != nil {
			break
		}
		if err = s.problems.DeleteProblem(ctx, id); err == nil {
			message = "Problem deleted"
		}

	default:
		err = InvalidInputError(fmt.Sprintf("unknown action %q", action))
	}

	if err != nil {
		s.redirectWithError(c, "/admin", err)
		return
	}
	s.sessions.Flash(c, FlashSuccess, message)
	c.Redirect(http.StatusFound, "/admin")
}

func parseStatus(raw string) (models.StepStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return "", InvalidInputError("status is required")
	}
	status, err := models.ParseStepStatus(raw)
	if err != nil {
		return "", InvalidInputError(err.Error())
	}
	return status, nil
}

func addStepInput(c *gin.Context) (AddStepInput, error) {
	problemID, err := parseID(c.PostForm("problem_id"), "problem_id")
	if err != nil {
		return AddStepInput{}, err
	}
	componentID, err := parseOptionalID(c.PostForm("component_id"), "component_id")
	if err != nil {
		return AddStepInput{}, err
	}
	status, err := parseStatus(c.PostForm("status"))
	if err != nil {
		return AddStepInput{}, err
	}
	planned, err := parseOptionalDate(c.PostForm("planned_closing_date"), "planned closing date")
	if err != nil {
		return AddStepInput{}, err
	}
	return AddStepInput{
		ProblemID:          problemID,
		ComponentID:        componentID,
		Status:             status,
		Action:             optionalString(c.PostForm("step_action")),
		PlannedClosingDate: planned,
	}, nil
}

// adminProjectsPage lists projects and the catalog used by its forms
func (s *Server) adminProjectsPage(c *gin.Context) {
	ctx := c.Request.Context()
	projects, err := s.projects.List(ctx)
	if err != nil {
		HandleRequestError(c, err)
		return
	}
	managers, err := s.projects.ListManagers(ctx)
	if err != nil {
		HandleRequestError(c, err)
		return
	}
	customers, err := s.projects.ListCustomers(ctx)
	if err != nil {
		HandleRequestError(c, err)
		return
	}
	engineers, err := s.projects.ListEngineers(ctx)
	if err != nil {
		HandleRequestError(c, err)
		return
	}
	render(c, http.StatusOK, "admin_projects.html", gin.H{
		"Title":     "projects",
		"Projects":  projects,
		"Managers":  managers,
		"Customers": customers,
		"Engineers": engineers,
	})
}

// adminProjectsAction dispatches the catalog forms on their action field
func (s *Server) adminProjectsAction(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		message string
		err     error
	)

	switch action := c.PostForm("action"); action {
	case "add_project":
		var in ProjectInput
		if in, err = projectInput(c); err != nil {
			break
		}
		var project *models.Project
		if project, err = s.projects.Create(ctx, in); err == nil {
			message = fmt.Sprintf("Project %s added", project.ProjectNumber)
		}

	case "edit_project":
		var id uint
		if id, err = parseID(c.PostForm("project_id"), "project_id"); err != nil {
			break
		}
		var in ProjectInput
		if in, err = projectInput(c); err != nil {
			break
		}
		var project *models.Project
		if project, err = s.projects.Update(ctx, id, in); err == nil {
			message = fmt.Sprintf("Project %s updated", project.ProjectNumber)
		}

	case "delete_project":
		var id uint
		if id, err = parseID(c.PostForm("project_id"), "project_id"); err != nil {
			break
		}
		if err = s.projects.Delete(ctx, id); err == nil {
			message = "Project deleted"
		}

	case "add_group":
		var in GroupInput
		if in, err = groupInput(c); err != nil {
			break
		}
		var group *models.Group
		if group, err = s.projects.CreateGroup(ctx, in); err == nil {
			message = fmt.Sprintf("Group %s added", group.GroupNumber)
		}

	case "add_component":
		var in ComponentInput
		if in, err = componentInput(c); err != nil {
			break
		}
		var component *models.Component
		if component, err = s.projects.CreateComponent(ctx, in); err == nil {
			message = fmt.Sprintf("Component %s added", component.ComponentNo)
		}

	case "add_manager":
		if _, err = s.projects.CreateManager(ctx, c.PostForm("manager_name")); err == nil {
			message = "Manager added"
		}

	case "add_customer":
		if _, err = s.projects.CreateCustomer(ctx, c.PostForm("customer_name"), c.PostForm("customer_country")); err == nil {
			message = "Customer added"
		}

	case "add_engineer":
		if _, err = s.projects.CreateEngineer(ctx, c.PostForm("engineer_name")); err == nil {
			message = "Engineer added"
		}

	case "import_projects", "import_components":
		s.importSpreadsheet(c, action)
		return

	default:
		err = InvalidInputError(fmt.Sprintf("unknown action %q", action))
	}

	if err != nil {
		s.redirectWithError(c, "/admin/projects", err)
		return
	}
	s.sessions.Flash(c, FlashSuccess, message)
	c.Redirect(http.StatusFound, "/admin/projects")
}

// importSpreadsheet runs a best-effort import and flashes its summary
func (s *Server) importSpreadsheet(c *gin.Context, action string) {
	const back = "/admin/projects"

	header, err := c.FormFile("file")
	if err != nil {
		s.redirectWithError(c, back, InvalidInputError("an .xlsx file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		s.redirectWithError(c, back, fmt.Errorf("failed to open uploaded spreadsheet: %w", err))
		return
	}
	defer func() { _ = file.Close() }()

	var result *ImportResult
	if action == "import_projects" {
		result, err = s.imports.ImportProjects(c.Request.Context(), file)
	} else {
		var groupID uint
		groupID, err = parseID(c.PostForm("group_id"), "group_id")
		if err == nil {
			headerRows := 1
			if raw := strings.TrimSpace(c.PostForm("header_rows")); raw != "" {
				if headerRows, err = strconv.Atoi(raw); err != nil || headerRows < 0 {
					err = InvalidInputError("header_rows must be a non-negative number")
				}
			}
			if err == nil {
				result, err = s.imports.ImportComponents(c.Request.Context(), file, groupID, headerRows)
			}
		}
	}
	if err != nil {
		s.redirectWithError(c, back, err)
		return
	}

	category := FlashSuccess
	if result.Failed > 0 {
		category = FlashError
	}
	s.sessions.Flash(c, category, "Import: "+result.Summary())
	c.Redirect(http.StatusFound, back)
}

func projectInput(c *gin.Context) (ProjectInput, error) {
	quantity, err := cellInt(strings.TrimSpace(c.PostForm("quantity")), "quantity")
	if err != nil {
		return ProjectInput{}, err
	}
	if quantity == nil {
		return ProjectInput{}, InvalidInputError("quantity is required")
	}
	managerID, err := parseID(c.PostForm("manager_id"), "manager_id")
	if err != nil {
		return ProjectInput{}, err
	}
	customerID, err := parseID(c.PostForm("customer_id"), "customer_id")
	if err != nil {
		return ProjectInput{}, err
	}
	return ProjectInput{
		Number:      c.PostForm("project_number"),
		Name:        c.PostForm("project_name"),
		Quantity:    *quantity,
		MachineType: optionalString(c.PostForm("machine_type")),
		ManagerID:   managerID,
		CustomerID:  customerID,
	}, nil
}

func groupInput(c *gin.Context) (GroupInput, error) {
	projectID, err := parseID(c.PostForm("project_id"), "project_id")
	if err != nil {
		return GroupInput{}, err
	}
	engineerID, err := parseOptionalID(c.PostForm("engineer_id"), "engineer_id")
	if err != nil {
		return GroupInput{}, err
	}
	weight, err := cellFloat(strings.TrimSpace(c.PostForm("weight")), "weight")
	if err != nil {
		return GroupInput{}, err
	}
	return GroupInput{
		ProjectID:  projectID,
		EngineerID: engineerID,
		Number:     c.PostForm("group_number"),
		Name:       c.PostForm("group_name"),
		Weight:     weight,
		Size:       optionalString(c.PostForm("size")),
		Material:   optionalString(c.PostForm("material")),
	}, nil
}

func componentInput(c *gin.Context) (ComponentInput, error) {
	groupID, err := parseID(c.PostForm("group_id"), "group_id")
	if err != nil {
		return ComponentInput{}, err
	}
	form := func(name string) string { return strings.TrimSpace(c.PostForm(name)) }
	unitQty, err := cellInt(form("unit_quantity"), "unit quantity")
	if err != nil {
		return ComponentInput{}, err
	}
	totalQty, err := cellInt(form("total_quantity"), "total quantity")
	if err != nil {
		return ComponentInput{}, err
	}
	weight, err := cellFloat(form("weight"), "weight")
	if err != nil {
		return ComponentInput{}, err
	}
	return ComponentInput{
		GroupID:       groupID,
		PositionNo:    optionalString(form("position_no")),
		ComponentNo:   form("component_no"),
		ComponentName: form("component_name"),
		UnitQuantity:  unitQty,
		TotalQuantity: totalQty,
		Weight:        weight,
		Description:   optionalString(form("description")),
		Size:          optionalString(form("size")),
		Materials:     optionalString(form("materials")),
		MachineType:   optionalString(form("machine_type")),
		Notes:         optionalString(form("notes")),
		WorkingArea:   optionalString(form("working_area")),
	}, nil
}
