package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/unimak/dftrack/api/models"
	"github.com/unimak/dftrack/internal/slogging"
)

// DashboardRow is one recent problem on the home page
type DashboardRow struct {
	ProblemID     uint      `gorm:"column:problem_id"`
	DFNumber      string    `gorm:"column:df_number"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	ProjectNumber string    `gorm:"column:project_number"`
	ManagerName   string    `gorm:"column:manager_name"`
	Reason        *string   `gorm:"column:reason"`
	Description   *string   `gorm:"column:description"`
}

// ReasonLabel returns the display label of the first reason
func (r DashboardRow) ReasonLabel() string {
	if r.Reason == nil {
		return ""
	}
	return models.Reasons().Label(*r.Reason)
}

// HistoryRow is one step in the chronological history
type HistoryRow struct {
	StepID             uint              `gorm:"column:step_id"`
	DFNumber           string            `gorm:"column:df_number"`
	ProjectNumber      string            `gorm:"column:project_number"`
	ComponentName      *string           `gorm:"column:component_name"`
	StepNumber         int               `gorm:"column:step_number"`
	Status             models.StepStatus `gorm:"column:status"`
	Action             *string           `gorm:"column:action"`
	PlannedClosingDate *time.Time        `gorm:"column:planned_closing_date"`
	CreatedAt          time.Time         `gorm:"column:created_at"`
}

// AddStepInput describes a follow-up step
type AddStepInput struct {
	ProblemID          uint
	ComponentID        *uint
	Status             models.StepStatus
	Action             *string
	PlannedClosingDate *time.Time
}

// ProblemStoreInterface defines the read and admin operations on problems
type ProblemStoreInterface interface {
	InfoTree(ctx context.Context) ([]*ManagerNode, error)
	AdminListing(ctx context.Context) ([]*ProblemNode, error)
	Dashboard(ctx context.Context, limit int) ([]DashboardRow, error)
	History(ctx context.Context, limit int) ([]HistoryRow, error)
	UpdateStepStatus(ctx context.Context, stepID uint, status models.StepStatus) error
	AddStep(ctx context.Context, in AddStepInput) (*models.ProblemStep, error)
	DeleteStep(ctx context.Context, stepID uint) error
	DeleteProblemComponent(ctx context.Context, problemComponentID uint) error
	DeleteProblem(ctx context.Context, problemID uint) error
}

// GormProblemStore implements ProblemStoreInterface using GORM
type GormProblemStore struct {
	db     *gorm.DB
	photos *PhotoStore
}

// NewGormProblemStore creates a new GORM-backed problem store
func NewGormProblemStore(db *gorm.DB, photos *PhotoStore) *GormProblemStore {
	return &GormProblemStore{db: db, photos: photos}
}

const defaultRecentProblems = 20

const infoColumns = `m.id AS manager_id, m.manager_name AS manager_name,
	p.id AS project_id, p.project_number AS project_number, p.project_name AS project_name,
	cu.customer_name AS customer_name,
	pr.id AS problem_id, pr.df_number AS df_number, pr.created_at AS problem_created_at,
	pr.planned_closing_date AS planned_closing_date,
	u.username AS recorder_name, g.group_number AS group_number, g.group_name AS group_name,
	pc.id AS problem_component_id, c.id AS component_id, c.component_no AS component_no,
	c.component_name AS component_name, pc.reason AS reason, pc.department AS department,
	pc.action AS action, pc.priority AS priority, pc.description AS description`

// InfoTree returns the manager, project, problem tree of the info page
func (s *GormProblemStore) InfoTree(ctx context.Context) ([]*ManagerNode, error) {
	logger := slogging.Get()

	var rows []InfoRow
	err := s.db.WithContext(ctx).
		Table("managers m").
		Select(infoColumns).
		Joins("LEFT JOIN projects p ON p.manager_id = m.id").
		Joins("LEFT JOIN customers cu ON cu.id = p.customer_id").
		Joins("LEFT JOIN problems pr ON pr.project_id = p.id").
		Joins("LEFT JOIN users u ON u.id = pr.recorder_id").
		Joins("LEFT JOIN project_groups g ON g.id = pr.group_id").
		Joins("LEFT JOIN problem_components pc ON pc.problem_id = pr.id").
		Joins("LEFT JOIN components c ON c.id = pc.component_id").
		Order("m.manager_name, p.project_number, pr.created_at DESC, pr.id, pc.id").
		Scan(&rows).Error
	if err != nil {
		logger.Error("failed to query info rows: %v", err)
		return nil, ServerError(genericErrorMessage)
	}

	tree := FoldInfoRows(rows)
	if err := s.attachSteps(ctx, ProblemsOf(tree)); err != nil {
		return nil, err
	}
	return tree, nil
}

// AdminListing returns every problem, newest first, with components, steps and photos
func (s *GormProblemStore) AdminListing(ctx context.Context) ([]*ProblemNode, error) {
	logger := slogging.Get()

	var rows []InfoRow
	err := s.db.WithContext(ctx).
		Table("problems pr").
		Select(infoColumns).
		Joins("JOIN projects p ON p.id = pr.project_id").
		Joins("LEFT JOIN managers m ON m.id = p.manager_id").
		Joins("LEFT JOIN customers cu ON cu.id = p.customer_id").
		Joins("LEFT JOIN users u ON u.id = pr.recorder_id").
		Joins("LEFT JOIN project_groups g ON g.id = pr.group_id").
		Joins("LEFT JOIN problem_components pc ON pc.problem_id = pr.id").
		Joins("LEFT JOIN components c ON c.id = pc.component_id").
		Order("pr.created_at DESC, pr.id DESC, pc.id").
		Scan(&rows).Error
	if err != nil {
		logger.Error("failed to query admin listing: %v", err)
		return nil, ServerError(genericErrorMessage)
	}

	problems := FoldProblemRows(rows)
	if err := s.attachSteps(ctx, problems); err != nil {
		return nil, err
	}
	for _, p := range problems {
		photos, err := s.photos.List(p.DFNumber)
		if err != nil {
			logger.Warn("failed to list photos of %s: %v", p.DFNumber, err)
			continue
		}
		p.Photos = photos
	}
	return problems, nil
}

func (s *GormProblemStore) attachSteps(ctx context.Context, problems []*ProblemNode) error {
	if len(problems) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(problems))
	for _, p := range problems {
		ids = append(ids, p.ID)
	}

	var steps []StepRow
	err := s.db.WithContext(ctx).
		Table("problem_steps s").
		Select(`s.id AS id, s.problem_id AS problem_id, s.component_id AS component_id,
			c.component_name AS component_name, s.step_number AS step_number,
			s.df_filename AS df_filename, s.status AS status, s.action AS action,
			s.planned_closing_date AS planned_closing_date, s.created_at AS created_at`).
		Joins("LEFT JOIN components c ON c.id = s.component_id").
		Where("s.problem_id IN ?", ids).
		Order("s.problem_id, s.component_id, s.step_number").
		Scan(&steps).Error
	if err != nil {
		slogging.Get().Error("failed to query problem steps: %v", err)
		return ServerError(genericErrorMessage)
	}
	AttachSteps(problems, steps)
	return nil
}

// Dashboard returns the most recent problems with their first reported reason
func (s *GormProblemStore) Dashboard(ctx context.Context, limit int) ([]DashboardRow, error) {
	if limit <= 0 {
		limit = defaultRecentProblems
	}
	var rows []DashboardRow
	err := s.db.WithContext(ctx).
		Table("problems pr").
		Select(`pr.id AS problem_id, pr.df_number AS df_number, pr.created_at AS created_at,
			p.project_number AS project_number, m.manager_name AS manager_name,
			pc.reason AS reason, pc.description AS description`).
		Joins("JOIN projects p ON p.id = pr.project_id").
		Joins("LEFT JOIN managers m ON m.id = p.manager_id").
		Joins("LEFT JOIN problem_components pc ON pc.id = (SELECT MIN(pc2.id) FROM problem_components pc2 WHERE pc2.problem_id = pr.id)").
		Order("pr.created_at DESC, pr.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		slogging.Get().Error("failed to query dashboard: %v", err)
		return nil, ServerError(genericErrorMessage)
	}
	return rows, nil
}

// History returns steps newest first. A non-positive limit returns all steps.
func (s *GormProblemStore) History(ctx context.Context, limit int) ([]HistoryRow, error) {
	query := s.db.WithContext(ctx).
		Table("problem_steps s").
		Select(`s.id AS step_id, pr.df_number AS df_number, p.project_number AS project_number,
			c.component_name AS component_name, s.step_number AS step_number, s.status AS status,
			s.action AS action, s.planned_closing_date AS planned_closing_date, s.created_at AS created_at`).
		Joins("JOIN problems pr ON pr.id = s.problem_id").
		Joins("JOIN projects p ON p.id = pr.project_id").
		Joins("LEFT JOIN components c ON c.id = s.component_id").
		Order("s.created_at DESC, s.id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []HistoryRow
	if err := query.Scan(&rows).Error; err != nil {
		slogging.Get().Error("failed to query history: %v", err)
		return nil, ServerError(genericErrorMessage)
	}
	return rows, nil
}

// UpdateStepStatus sets the status of one step
func (s *GormProblemStore) UpdateStepStatus(ctx context.Context, stepID uint, status models.StepStatus) error {
	logger := slogging.Get()
	if !status.Valid() {
		return InvalidInputError(fmt.Sprintf("unknown status %q", status))
	}

	var step models.ProblemStep
	if err := s.db.WithContext(ctx).First(&step, stepID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFoundError(fmt.Sprintf("step not found: %d", stepID))
		}
		logger.Error("failed to load step %d: %v", stepID, err)
		return ServerError(genericErrorMessage)
	}

	step.Status = status
	if err := s.db.WithContext(ctx).Save(&step).Error; err != nil {
		logger.Error("failed to update step %d: %v", stepID, err)
		return ServerError(genericErrorMessage)
	}

	logger.Info("step status updated: id=%d, problem_id=%d, status=%s", step.ID, step.ProblemID, status)
	return nil
}

// AddStep appends a follow-up step numbered after the highest existing step
// of the same problem and component
func (s *GormProblemStore) AddStep(ctx context.Context, in AddStepInput) (*models.ProblemStep, error) {
	logger := slogging.Get()
	if !in.Status.Valid() {
		return nil, InvalidInputError("a valid status is required")
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, ServerError(genericErrorMessage)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var problem models.Problem
	if err := tx.First(&problem, in.ProblemID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError(fmt.Sprintf("problem not found: %d", in.ProblemID))
		}
		logger.Error("failed to load problem %d: %v", in.ProblemID, err)
		return nil, ServerError(genericErrorMessage)
	}

	steps := tx.Model(&models.ProblemStep{}).Where("problem_id = ?", in.ProblemID)
	if in.ComponentID != nil {
		var count int64
		if err := tx.Model(&models.ProblemComponent{}).
			Where("problem_id = ? AND component_id = ?", in.ProblemID, *in.ComponentID).
			Count(&count).Error; err != nil {
			tx.Rollback()
			return nil, ServerError(genericErrorMessage)
		}
		if count == 0 {
			tx.Rollback()
			return nil, InvalidInputError(fmt.Sprintf("component %d is not part of problem %s", *in.ComponentID, problem.DFNumber))
		}
		steps = steps.Where("component_id = ?", *in.ComponentID)
	} else {
		steps = steps.Where("component_id IS NULL")
	}

	var maxStep sql.NullInt64
	if err := steps.Select("MAX(step_number)").Row().Scan(&maxStep); err != nil {
		tx.Rollback()
		logger.Error("failed to read last step of problem %d: %v", in.ProblemID, err)
		return nil, ServerError(genericErrorMessage)
	}

	step := models.ProblemStep{
		ProblemID:          in.ProblemID,
		ComponentID:        in.ComponentID,
		StepNumber:         1,
		DFFilename:         DFFilename(problem.DFNumber),
		Status:             in.Status,
		Action:             sanitizeOptional(in.Action),
		PlannedClosingDate: in.PlannedClosingDate,
	}
	if maxStep.Valid {
		step.StepNumber = int(maxStep.Int64) + 1
	}
	if err := tx.Create(&step).Error; err != nil {
		tx.Rollback()
		logger.Error("failed to insert step for problem %d: %v", in.ProblemID, err)
		return nil, ServerError(genericErrorMessage)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, ServerError(genericErrorMessage)
	}

	logger.Info("step added: id=%d, problem_id=%d, step_number=%d", step.ID, step.ProblemID, step.StepNumber)
	return &step, nil
}

// DeleteStep removes one step
func (s *GormProblemStore) DeleteStep(ctx context.Context, stepID uint) error {
	result := s.db.WithContext(ctx).Delete(&models.ProblemStep{}, stepID)
	if result.Error != nil {
		slogging.Get().Error("failed to delete step %d: %v", stepID, result.Error)
		return ServerError(genericErrorMessage)
	}
	if result.RowsAffected == 0 {
		return NotFoundError(fmt.Sprintf("step not found: %d", stepID))
	}
	slogging.Get().Info("step deleted: id=%d", stepID)
	return nil
}

// DeleteProblemComponent removes a reported component together with its steps
func (s *GormProblemStore) DeleteProblemComponent(ctx context.Context, problemComponentID uint) error {
	logger := slogging.Get()

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return ServerError(genericErrorMessage)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var pc models.ProblemComponent
	if err := tx.First(&pc, problemComponentID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFoundError(fmt.Sprintf("problem component not found: %d", problemComponentID))
		}
		return ServerError(genericErrorMessage)
	}

	if err := tx.Where("problem_id = ? AND component_id = ?", pc.ProblemID, pc.ComponentID).
		Delete(&models.ProblemStep{}).Error; err != nil {
		tx.Rollback()
		logger.Error("failed to delete steps of problem component %d: %v", pc.ID, err)
		return ServerError(genericErrorMessage)
	}
	if err := tx.Delete(&pc).Error; err != nil {
		tx.Rollback()
		logger.Error("failed to delete problem component %d: %v", pc.ID, err)
		return ServerError(genericErrorMessage)
	}

	if err := tx.Commit().Error; err != nil {
		return ServerError(genericErrorMessage)
	}

	logger.Info("problem component deleted: id=%d, problem_id=%d", pc.ID, pc.ProblemID)
	return nil
}

// DeleteProblem removes a problem with its components and steps, then its photo folder
func (s *GormProblemStore) DeleteProblem(ctx context.Context, problemID uint) error {
	logger := slogging.Get()

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return ServerError(genericErrorMessage)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var problem models.Problem
	if err := tx.First(&problem, problemID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFoundError(fmt.Sprintf("problem not found: %d", problemID))
		}
		return ServerError(genericErrorMessage)
	}

	if err := tx.Where("problem_id = ?", problemID).Delete(&models.ProblemStep{}).Error; err != nil {
		tx.Rollback()
		logger.Error("failed to delete steps of problem %d: %v", problemID, err)
		return ServerError(genericErrorMessage)
	}
	if err := tx.Where("problem_id = ?", problemID).Delete(&models.ProblemComponent{}).Error; err != nil {
		tx.Rollback()
		logger.Error("failed to delete components of problem %d: %v", problemID, err)
		return ServerError(genericErrorMessage)
	}
	if err := tx.Delete(&problem).Error; err != nil {
		tx.Rollback()
		logger.Error("failed to delete problem %d: %v", problemID, err)
		return ServerError(genericErrorMessage)
	}

	if err := tx.Commit().Error; err != nil {
		return ServerError(genericErrorMessage)
	}

	if err := s.photos.Remove(problem.DFNumber); err != nil {
		logger.Warn("failed to remove photos of %s: %v", problem.DFNumber, err)
	}
	logger.Info("problem deleted: id=%d, df_number=%s", problem.ID, problem.DFNumber)
	return nil
}
