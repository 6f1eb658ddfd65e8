package api

import (
	"time"

	"github.com/samber/lo"

	"github.com/unimak/dftrack/api/models"
)

// InfoRow is one row of the manager/project/problem/component outer join.
// Pointer fields are NULL when the outer join branch is absent.
type InfoRow struct {
	ManagerID          *uint      `gorm:"column:manager_id"`
	ManagerName        *string    `gorm:"column:manager_name"`
	ProjectID          *uint      `gorm:"column:project_id"`
	ProjectNumber      *string    `gorm:"column:project_number"`
	ProjectName        *string    `gorm:"column:project_name"`
	CustomerName       *string    `gorm:"column:customer_name"`
	ProblemID          *uint      `gorm:"column:problem_id"`
	DFNumber           *string    `gorm:"column:df_number"`
	ProblemCreatedAt   *time.Time `gorm:"column:problem_created_at"`
	PlannedClosingDate *time.Time `gorm:"column:planned_closing_date"`
	RecorderName       *string    `gorm:"column:recorder_name"`
	GroupNumber        *string    `gorm:"column:group_number"`
	GroupName          *string    `gorm:"column:group_name"`
	ProblemComponentID *uint      `gorm:"column:problem_component_id"`
	ComponentID        *uint      `gorm:"column:component_id"`
	ComponentNo        *string    `gorm:"column:component_no"`
	ComponentName      *string    `gorm:"column:component_name"`
	Reason             *string    `gorm:"column:reason"`
	Department         *string    `gorm:"column:department"`
	Action             *string    `gorm:"column:action"`
	Priority           *string    `gorm:"column:priority"`
	Description        *string    `gorm:"column:description"`
}

// StepRow is one problem step joined with its component
type StepRow struct {
	ID                 uint              `gorm:"column:id"`
	ProblemID          uint              `gorm:"column:problem_id"`
	ComponentID        *uint             `gorm:"column:component_id"`
	ComponentName      *string           `gorm:"column:component_name"`
	StepNumber         int               `gorm:"column:step_number"`
	DFFilename         string            `gorm:"column:df_filename"`
	Status             models.StepStatus `gorm:"column:status"`
	Action             *string           `gorm:"column:action"`
	PlannedClosingDate *time.Time        `gorm:"column:planned_closing_date"`
	CreatedAt          time.Time         `gorm:"column:created_at"`
}

// ManagerNode is the top level of the info tree
type ManagerNode struct {
	ID       uint
	Name     string
	Projects []*ProjectNode
}

// ProjectNode groups the problems of one project
type ProjectNode struct {
	ID           uint
	Number       string
	Name         string
	CustomerName string
	Problems     []*ProblemNode
}

// ProblemNode is one DF report with its components, steps and photos
type ProblemNode struct {
	ID                 uint
	DFNumber           string
	CreatedAt          time.Time
	PlannedClosingDate *time.Time
	RecorderName       string
	ProjectNumber      string
	ManagerName        string
	GroupNumber        string
	GroupName          string
	Components         []*ComponentNode
	Steps              []StepRow
	Photos             []string
}

// ComponentNode is one reported component of a problem
type ComponentNode struct {
	ProblemComponentID uint
	ComponentID        uint
	ComponentNo        string
	ComponentName      string
	Reason             string
	Department         string
	Action             string
	Priority           string
	Description        string
	Steps              []StepRow
}

// ReasonLabel returns the display label of the stored reason key
func (c ComponentNode) ReasonLabel() string { return models.Reasons().Label(c.Reason) }

// DepartmentLabel returns the display label of the stored department key
func (c ComponentNode) DepartmentLabel() string { return models.Departments().Label(c.Department) }

// ActionLabel returns the display label of the stored action key
func (c ComponentNode) ActionLabel() string { return models.Actions().Label(c.Action) }

// PriorityLabel returns the display label of the stored priority key
func (c ComponentNode) PriorityLabel() string { return models.Priorities().Label(c.Priority) }

// LastStep returns the highest numbered step, or nil when there is none
func (c ComponentNode) LastStep() *StepRow {
	if len(c.Steps) == 0 {
		return nil
	}
	last := c.Steps[len(c.Steps)-1]
	return &last
}

// infoFolder folds outer join rows into nodes. Every level is indexed by id,
// so a repeated id only appends its child.
type infoFolder struct {
	managers   map[uint]*ManagerNode
	projects   map[uint]*ProjectNode
	problems   map[uint]*ProblemNode
	components map[uint]struct{}

	tree        []*ManagerNode
	problemList []*ProblemNode
}

func newInfoFolder() *infoFolder {
	return &infoFolder{
		managers:   make(map[uint]*ManagerNode),
		projects:   make(map[uint]*ProjectNode),
		problems:   make(map[uint]*ProblemNode),
		components: make(map[uint]struct{}),
	}
}

func (f *infoFolder) add(row InfoRow) {
	var manager *ManagerNode
	if row.ManagerID != nil {
		manager = f.managers[*row.ManagerID]
		if manager == nil {
			manager = &ManagerNode{ID: *row.ManagerID, Name: lo.FromPtr(row.ManagerName)}
			f.managers[manager.ID] = manager
			f.tree = append(f.tree, manager)
		}
	}

	var project *ProjectNode
	if row.ProjectID != nil {
		project = f.projects[*row.ProjectID]
		if project == nil {
			project = &ProjectNode{
				ID:           *row.ProjectID,
				Number:       lo.FromPtr(row.ProjectNumber),
				Name:         lo.FromPtr(row.ProjectName),
				CustomerName: lo.FromPtr(row.CustomerName),
			}
			f.projects[project.ID] = project
			if manager != nil {
				manager.Projects = append(manager.Projects, project)
			}
		}
	}

	if row.ProblemID == nil {
		return
	}
	problem := f.problems[*row.ProblemID]
	if problem == nil {
		problem = &ProblemNode{
			ID:                 *row.ProblemID,
			DFNumber:           lo.FromPtr(row.DFNumber),
			CreatedAt:          lo.FromPtr(row.ProblemCreatedAt),
			PlannedClosingDate: row.PlannedClosingDate,
			RecorderName:       lo.FromPtr(row.RecorderName),
			ProjectNumber:      lo.FromPtr(row.ProjectNumber),
			ManagerName:        lo.FromPtr(row.ManagerName),
			GroupNumber:        lo.FromPtr(row.GroupNumber),
			GroupName:          lo.FromPtr(row.GroupName),
			Components:         []*ComponentNode{},
			Photos:             []string{},
		}
		f.problems[problem.ID] = problem
		f.problemList = append(f.problemList, problem)
		if project != nil {
			project.Problems = append(project.Problems, problem)
		}
	}

	if row.ProblemComponentID == nil {
		return
	}
	if _, seen := f.components[*row.ProblemComponentID]; seen {
		return
	}
	f.components[*row.ProblemComponentID] = struct{}{}
	problem.Components = append(problem.Components, &ComponentNode{
		ProblemComponentID: *row.ProblemComponentID,
		ComponentID:        lo.FromPtr(row.ComponentID),
		ComponentNo:        lo.FromPtr(row.ComponentNo),
		ComponentName:      lo.FromPtr(row.ComponentName),
		Reason:             lo.FromPtr(row.Reason),
		Department:         lo.FromPtr(row.Department),
		Action:             lo.FromPtr(row.Action),
		Priority:           lo.FromPtr(row.Priority),
		Description:        lo.FromPtr(row.Description),
	})
}

// FoldInfoRows folds ordered join rows into the manager, project, problem
// tree in a single pass. Node order follows first appearance in rows.
func FoldInfoRows(rows []InfoRow) []*ManagerNode {
	f := newInfoFolder()
	for _, row := range rows {
		f.add(row)
	}
	if f.tree == nil {
		return []*ManagerNode{}
	}
	return f.tree
}

// FoldProblemRows folds join rows into a flat problem list, ignoring the
// manager and project levels
func FoldProblemRows(rows []InfoRow) []*ProblemNode {
	f := newInfoFolder()
	for _, row := range rows {
		f.add(row)
	}
	if f.problemList == nil {
		return []*ProblemNode{}
	}
	return f.problemList
}

// ProblemsOf returns every problem node of a tree in tree order
func ProblemsOf(tree []*ManagerNode) []*ProblemNode {
	var out []*ProblemNode
	for _, m := range tree {
		for _, p := range m.Projects {
			out = append(out, p.Problems...)
		}
	}
	return out
}

// AttachSteps appends each step to its problem and, when the step names a
// reported component, to that component too. Steps of unknown problems are ignored.
func AttachSteps(problems []*ProblemNode, steps []StepRow) {
	byID := lo.KeyBy(problems, func(p *ProblemNode) uint { return p.ID })
	for _, step := range steps {
		problem, ok := byID[step.ProblemID]
		if !ok {
			continue
		}
		problem.Steps = append(problem.Steps, step)
		if step.ComponentID == nil {
			continue
		}
		for _, c := range problem.Components {
			if c.ComponentID == *step.ComponentID {
				c.Steps = append(c.Steps, step)
				break
			}
		}
	}
}
