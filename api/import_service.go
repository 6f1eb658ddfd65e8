package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/unimak/dftrack/api/models"
	"github.com/unimak/dftrack/internal/slogging"
)

// Import kinds, used as the metrics label
const (
	ImportKindProjects   = "projects"
	ImportKindComponents = "components"
)

// maxReportedImportErrors caps the per-row messages kept for the summary
const maxReportedImportErrors = 10

// Spreadsheet column order of a project import
const (
	projectColNumber = iota
	projectColName
	projectColQuantity
	projectColManager
	projectColCustomer
	projectColCountry
	projectColMachineType
)

// Spreadsheet column order of a component import
const (
	componentColPosition = iota
	componentColNumber
	componentColName
	componentColUnitQuantity
	componentColTotalQuantity
	componentColWeight
	componentColDescription
	componentColSize
	componentColMaterials
	componentColMachineType
	componentColNotes
	componentColWorkingArea
)

// ImportResult summarizes a best-effort spreadsheet import
type ImportResult struct {
	Imported int
	Failed   int
	Errors   []string
}

func (r *ImportResult) fail(row int, err error) {
	r.Failed++
	if len(r.Errors) < maxReportedImportErrors {
		r.Errors = append(r.Errors, fmt.Sprintf("row %d: %s", row, AsRequestError(err).Message))
	}
}

// Summary renders the result as a single flash line
func (r *ImportResult) Summary() string {
	msg := fmt.Sprintf("%d imported, %d failed", r.Imported, r.Failed)
	if len(r.Errors) > 0 {
		msg += ": " + strings.Join(r.Errors, "; ")
	}
	if r.Failed > len(r.Errors) {
		msg += fmt.Sprintf(" (and %d more)", r.Failed-len(r.Errors))
	}
	return msg
}

// ImportService loads projects and components from .xlsx spreadsheets.
// Every row commits on its own, so valid rows survive invalid neighbours.
type ImportService struct {
	db       *gorm.DB
	projects *GormProjectStore
	metrics  *Metrics
}

// NewImportService creates an import service
func NewImportService(db *gorm.DB, projects *GormProjectStore, metrics *Metrics) *ImportService {
	return &ImportService{db: db, projects: projects, metrics: metrics}
}

// readSheet returns the rows of the first sheet after skipping headerRows
func readSheet(r io.Reader, headerRows int) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, InvalidInputError("file is not a readable .xlsx spreadsheet")
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, InvalidInputError("spreadsheet has no readable sheet")
	}
	if headerRows < 0 {
		headerRows = 0
	}
	if len(rows) <= headerRows {
		return nil, nil
	}
	return rows[headerRows:], nil
}

// cell returns the trimmed cell at col, or "" when the row is short
func cell(row []string, col int) string {
	if col < len(row) {
		return strings.TrimSpace(row[col])
	}
	return ""
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// cellInt parses a whole number; spreadsheets often store them as "2.0"
func cellInt(raw, field string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return nil, InvalidInputError(fmt.Sprintf("%s must be a whole number: %q", field, raw))
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return nil, InvalidInputError(fmt.Sprintf("%s is out of range: %q", field, raw))
	}
	n := int(f)
	return &n, nil
}

func cellFloat(raw, field string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return nil, InvalidInputError(fmt.Sprintf("%s must be a number: %q", field, raw))
	}
	return &f, nil
}

// ImportProjects upserts projects by project number. Managers and customers
// named in the sheet are created when missing.
func (s *ImportService) ImportProjects(ctx context.Context, r io.Reader) (*ImportResult, error) {
	rows, err := readSheet(r, 1)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for i, row := range rows {
		if blankRow(row) {
			continue
		}
		if err := s.importProjectRow(ctx, row); err != nil {
			result.fail(i+2, err)
			continue
		}
		result.Imported++
	}

	slogging.Get().Info("project import finished: imported=%d failed=%d", result.Imported, result.Failed)
	s.metrics.RecordImport(ImportKindProjects, result.Imported, result.Failed)
	return result, nil
}

// importProjectRow commits one project row, together with the manager and
// customer it creates, or nothing at all
func (s *ImportService) importProjectRow(ctx context.Context, row []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return importProjectRowTx(ctx, tx, row)
	})
}

func importProjectRowTx(ctx context.Context, tx *gorm.DB, row []string) error {
	number := cell(row, projectColNumber)
	if number == "" {
		return InvalidInputError("project number is required")
	}
	quantity, err := cellInt(cell(row, projectColQuantity), "quantity")
	if err != nil {
		return err
	}
	if quantity == nil {
		return InvalidInputError("quantity is required")
	}

	projects := NewGormProjectStore(tx)
	manager, err := findOrCreateManager(ctx, tx, projects, cell(row, projectColManager))
	if err != nil {
		return err
	}
	customer, err := findOrCreateCustomer(ctx, tx, projects, cell(row, projectColCustomer), cell(row, projectColCountry))
	if err != nil {
		return err
	}

	in := ProjectInput{
		Number:      number,
		Name:        cell(row, projectColName),
		Quantity:    *quantity,
		MachineType: optionalString(cell(row, projectColMachineType)),
		ManagerID:   manager.ID,
		CustomerID:  customer.ID,
	}

	var existing models.Project
	err = tx.Where("project_number = ?", number).First(&existing).Error
	switch {
	case err == nil:
		_, err = projects.Update(ctx, existing.ID, in)
	case errors.Is(err, gorm.ErrRecordNotFound):
		_, err = projects.Create(ctx, in)
	default:
		slogging.Get().Error("failed to look up project %s: %v", number, err)
		return ServerError(genericErrorMessage)
	}
	return err
}

func findOrCreateManager(ctx context.Context, tx *gorm.DB, projects *GormProjectStore, name string) (*models.Manager, error) {
	name = SanitizeText(name)
	if name == "" {
		return nil, InvalidInputError("manager name is required")
	}
	var manager models.Manager
	err := tx.Where("manager_name = ?", name).First(&manager).Error
	if err == nil {
		return &manager, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		slogging.Get().Error("failed to look up manager %s: %v", name, err)
		return nil, ServerError(genericErrorMessage)
	}
	return projects.CreateManager(ctx, name)
}

func findOrCreateCustomer(ctx context.Context, tx *gorm.DB, projects *GormProjectStore, name, country string) (*models.Customer, error) {
	name = SanitizeText(name)
	if name == "" {
		return nil, InvalidInputError("customer name is required")
	}
	var customer models.Customer
	err := tx.Where("customer_name = ?", name).First(&customer).Error
	if err == nil {
		return &customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		slogging.Get().Error("failed to look up customer %s: %v", name, err)
		return nil, ServerError(genericErrorMessage)
	}
	return projects.CreateCustomer(ctx, name, country)
}

// ImportComponents adds every component row of the sheet to a group.
// headerRows lines are skipped before the data starts.
func (s *ImportService) ImportComponents(ctx context.Context, r io.Reader, groupID uint, headerRows int) (*ImportResult, error) {
	ok, err := s.projects.exists(ctx, &models.Group{}, groupID)
	if err != nil {
		slogging.Get().Error("failed to check group %d: %v", groupID, err)
		return nil, ServerError(genericErrorMessage)
	}
	if !ok {
		return nil, InvalidInputError(fmt.Sprintf("group not found: %d", groupID))
	}

	rows, err := readSheet(r, headerRows)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for i, row := range rows {
		if blankRow(row) {
			continue
		}
		component, err := componentFromRow(groupID, row)
		if err == nil {
			if dbErr := s.db.WithContext(ctx).Create(component).Error; dbErr != nil {
				slogging.Get().Error("failed to insert component row %d: %v", i+headerRows+1, dbErr)
				err = ServerError(genericErrorMessage)
			}
		}
		if err != nil {
			result.fail(i+headerRows+1, err)
			continue
		}
		result.Imported++
	}

	slogging.Get().Info("component import finished: group_id=%d imported=%d failed=%d",
		groupID, result.Imported, result.Failed)
	s.metrics.RecordImport(ImportKindComponents, result.Imported, result.Failed)
	return result, nil
}

func componentFromRow(groupID uint, row []string) (*models.Component, error) {
	unitQty, err := cellInt(cell(row, componentColUnitQuantity), "unit quantity")
	if err != nil {
		return nil, err
	}
	totalQty, err := cellInt(cell(row, componentColTotalQuantity), "total quantity")
	if err != nil {
		return nil, err
	}
	weight, err := cellFloat(cell(row, componentColWeight), "weight")
	if err != nil {
		return nil, err
	}
	return newComponent(ComponentInput{
		GroupID:       groupID,
		PositionNo:    optionalString(cell(row, componentColPosition)),
		ComponentNo:   cell(row, componentColNumber),
		ComponentName: cell(row, componentColName),
		UnitQuantity:  unitQty,
		TotalQuantity: totalQty,
		Weight:        weight,
		Description:   optionalString(cell(row, componentColDescription)),
		Size:          optionalString(cell(row, componentColSize)),
		Materials:     optionalString(cell(row, componentColMaterials)),
		MachineType:   optionalString(cell(row, componentColMachineType)),
		Notes:         optionalString(cell(row, componentColNotes)),
		WorkingArea:   optionalString(cell(row, componentColWorkingArea)),
	})
}
