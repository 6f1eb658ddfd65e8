package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/unimak/dftrack/api/models"
	"github.com/unimak/dftrack/internal/slogging"
)

// maxReserveAttempts bounds the df folder reservation retries
const maxReserveAttempts = 5

const dateLayout = "2006-01-02"

// ReportInput is a submitted DF report before validation
type ReportInput struct {
	RecorderID         uint
	ProjectID          string
	GroupID            string
	PlannedClosingDate string
	Rows               []ComponentRow
	Photos             []PhotoUpload
}

// ReportResult describes a committed report
type ReportResult struct {
	ProblemID uint
	DFNumber  string
	Photos    []string
}

// reportLine is a validated component row
type reportLine struct {
	componentID uint
	reason      *string
	department  *string
	action      *string
	priority    *string
	description *string
	status      models.StepStatus
}

// ReportService runs the upload workflow of a DF report
type ReportService struct {
	db      *gorm.DB
	photos  *PhotoStore
	dfgen   *DFNumberGenerator
	metrics *Metrics
	now     func() time.Time
}

// NewReportService creates a report service
func NewReportService(db *gorm.DB, photos *PhotoStore, dfgen *DFNumberGenerator, metrics *Metrics) *ReportService {
	return &ReportService{
		db:      db,
		photos:  photos,
		dfgen:   dfgen,
		metrics: metrics,
		now:     time.Now,
	}
}

// CreateReport validates the input, reserves a df folder, saves the photos
// and records the problem with its components and first steps in one
// transaction. When the transaction fails the df folder is removed again.
func (s *ReportService) CreateReport(ctx context.Context, in ReportInput) (*ReportResult, error) {
	logger := slogging.Get()

	projectID, err := parseID(in.ProjectID, "project")
	if err != nil {
		return nil, err
	}
	groupID, err := parseID(in.GroupID, "group")
	if err != nil {
		return nil, err
	}
	closing, err := parseOptionalDate(in.PlannedClosingDate, "planned closing date")
	if err != nil {
		return nil, err
	}
	lines, err := validateReportLines(in.Rows)
	if err != nil {
		return nil, err
	}

	dfNumber, err := s.reserveDFNumber()
	if err != nil {
		return nil, err
	}

	names, err := s.photos.Save(dfNumber, in.Photos)
	if err != nil {
		logger.Error("failed to save photos for %s: %v", dfNumber, err)
		s.cleanup(dfNumber)
		return nil, ServerError(genericErrorMessage)
	}

	problem := models.Problem{
		ProjectID:          projectID,
		GroupID:            groupID,
		RecorderID:         in.RecorderID,
		DFNumber:           dfNumber,
		PlannedClosingDate: closing,
	}
	if err := s.persist(ctx, &problem, lines); err != nil {
		s.metrics.RecordReportRolledBack()
		s.cleanup(dfNumber)
		return nil, err
	}

	s.metrics.RecordReportCreated(len(names))
	logger.Info("report created: id=%d, df_number=%s, components=%d, photos=%d",
		problem.ID, dfNumber, len(lines), len(names))

	return &ReportResult{ProblemID: problem.ID, DFNumber: dfNumber, Photos: names}, nil
}

// reserveDFNumber issues df numbers until a folder can be created
func (s *ReportService) reserveDFNumber() (string, error) {
	now := s.now()
	for attempt := 1; attempt <= maxReserveAttempts; attempt++ {
		dfNumber := s.dfgen.Next(now)
		err := s.photos.Reserve(dfNumber)
		if err == nil {
			return dfNumber, nil
		}
		if !errors.Is(err, ErrFolderExists) {
			slogging.Get().Error("failed to reserve df folder %s: %v", dfNumber, err)
			return "", ServerError(genericErrorMessage)
		}
		slogging.Get().Warn("df folder %s already exists, attempt %d", dfNumber, attempt)
	}
	return "", ConflictError("could not allocate a df number, please try again")
}

func (s *ReportService) persist(ctx context.Context, problem *models.Problem, lines []reportLine) error {
	logger := slogging.Get()

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		logger.Error("failed to begin report transaction: %v", tx.Error)
		return ServerError(genericErrorMessage)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := checkReportReferences(tx, problem.ProjectID, problem.GroupID, lines); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Create(problem).Error; err != nil {
		tx.Rollback()
		if isUniqueConstraintError(err) {
			return ConflictError("df number already in use, please try again")
		}
		logger.Error("failed to insert problem %s: %v", problem.DFNumber, err)
		return ServerError(genericErrorMessage)
	}

	dfFilename := DFFilename(problem.DFNumber)
	for _, line := range lines {
		pc := models.ProblemComponent{
			ProblemID:   problem.ID,
			ComponentID: line.componentID,
			Reason:      line.reason,
			Department:  line.department,
			Action:      line.action,
			Priority:    line.priority,
			Description: line.description,
		}
		if err := tx.Create(&pc).Error; err != nil {
			tx.Rollback()
			logger.Error("failed to insert problem component for %s: %v", problem.DFNumber, err)
			return ServerError(genericErrorMessage)
		}

		componentID := line.componentID
		step := models.ProblemStep{
			ProblemID:          problem.ID,
			ComponentID:        &componentID,
			StepNumber:         1,
			DFFilename:         dfFilename,
			Status:             line.status,
			Action:             line.action,
			PlannedClosingDate: problem.PlannedClosingDate,
		}
		if err := tx.Create(&step).Error; err != nil {
			tx.Rollback()
			logger.Error("failed to insert first step for %s: %v", problem.DFNumber, err)
			return ServerError(genericErrorMessage)
		}
	}

	if err := tx.Commit().Error; err != nil {
		logger.Error("failed to commit report %s: %v", problem.DFNumber, err)
		return ServerError(genericErrorMessage)
	}
	return nil
}

// checkReportReferences verifies the project, that the group belongs to it
// and that every component belongs to the group
func checkReportReferences(tx *gorm.DB, projectID, groupID uint, lines []reportLine) error {
	var count int64
	if err := tx.Model(&models.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
		return ServerError(genericErrorMessage)
	}
	if count == 0 {
		return InvalidInputError(fmt.Sprintf("project not found: %d", projectID))
	}

	if err := tx.Model(&models.Group{}).Where("id = ? AND project_id = ?", groupID, projectID).Count(&count).Error; err != nil {
		return ServerError(genericErrorMessage)
	}
	if count == 0 {
		return InvalidInputError(fmt.Sprintf("group %d does not belong to project %d", groupID, projectID))
	}

	ids := lo.Uniq(lo.Map(lines, func(l reportLine, _ int) uint { return l.componentID }))
	var found []uint
	if err := tx.Model(&models.Component{}).Where("group_id = ? AND id IN ?", groupID, ids).Pluck("id", &found).Error; err != nil {
		return ServerError(genericErrorMessage)
	}
	if missing, _ := lo.Difference(ids, found); len(missing) > 0 {
		return InvalidInputError(fmt.Sprintf("component %d does not belong to group %d", missing[0], groupID))
	}
	return nil
}

// validateReportLines checks each row and maps its option values to stored keys
func validateReportLines(rows []ComponentRow) ([]reportLine, error) {
	if len(rows) == 0 {
		return nil, InvalidInputError("at least one component is required")
	}
	lines := make([]reportLine, 0, len(rows))
	for i, row := range rows {
		n := i + 1
		if row.ComponentID == nil {
			return nil, InvalidInputError(fmt.Sprintf("component %d: component is required", n))
		}
		componentID, err := parseID(*row.ComponentID, fmt.Sprintf("component %d", n))
		if err != nil {
			return nil, err
		}

		line := reportLine{componentID: componentID, status: models.InitialStepStatus}
		if line.reason, err = normalizeOption(models.Reasons(), row.Reason, n); err != nil {
			return nil, err
		}
		if line.department, err = normalizeOption(models.Departments(), row.Department, n); err != nil {
			return nil, err
		}
		if line.action, err = normalizeOption(models.Actions(), row.Action, n); err != nil {
			return nil, err
		}
		if line.priority, err = normalizeOption(models.Priorities(), row.Priority, n); err != nil {
			return nil, err
		}
		line.description = sanitizeOptional(row.Description)

		if row.Status != nil && strings.TrimSpace(*row.Status) != "" {
			status, err := models.ParseStepStatus(*row.Status)
			if err != nil {
				return nil, InvalidInputError(fmt.Sprintf("component %d: unknown status %q", n, *row.Status))
			}
			line.status = status
		}
		lines = append(lines, line)
	}

	ids := lo.Map(lines, func(l reportLine, _ int) uint { return l.componentID })
	if dups := lo.FindDuplicates(ids); len(dups) > 0 {
		return nil, InvalidInputError(fmt.Sprintf("component %d is listed more than once", dups[0]))
	}
	return lines, nil
}

func normalizeOption(set models.OptionSet, value *string, row int) (*string, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	key, ok := set.Normalize(*value)
	if !ok {
		return nil, InvalidInputError(fmt.Sprintf("component %d: unknown %s %q", row, set.Kind(), *value))
	}
	return &key, nil
}

// parseOptionalDate parses a YYYY-MM-DD value; blank means no date
func parseOptionalDate(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, InvalidInputError(fmt.Sprintf("%s must be a date (YYYY-MM-DD)", field))
	}
	return &t, nil
}

func (s *ReportService) cleanup(dfNumber string) {
	if err := s.photos.Remove(dfNumber); err != nil {
		slogging.Get().Warn("failed to remove df folder %s: %v", dfNumber, err)
	}
}
