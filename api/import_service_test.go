package api

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/unimak/dftrack/api/models"
)

// buildSheet writes rows into the first sheet of a new workbook
func buildSheet(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestImportService_ImportProjects(t *testing.T) {
	db := setupStoreDB(t)
	c := seedCatalog(t, db)
	metrics := NewMetrics()
	svc := NewImportService(db, NewGormProjectStore(db), metrics)

	sheet := buildSheet(t, [][]any{
		{"project_number", "project_name", "quantity", "manager_name", "customer_name", "customer_country", "machine_type"},
		{"P-2024-01", "Pasta line v2", 3, "Ayse Kaya", "Acme Foods", "TR", "Dryer"},
		{"P-2024-02", "Noodle line", "4.0", "Jose Diaz", "Fideos SA", "ES", ""},
		{},
		{"P-2024-03", "Bad quantity", "many", "Ayse Kaya", "Acme Foods", "TR", ""},
		{"P-2024-04", "No manager", 1, "", "Acme Foods", "TR", ""},
		{"P-2024-05", "Zero", 0, "Ayse Kaya", "Acme Foods", "TR", ""},
	})

	result, err := svc.ImportProjects(context.Background(), sheet)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 3, result.Failed)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "quantity must be a whole number")
	assert.Contains(t, result.Errors[1], "manager name is required")
	assert.Contains(t, result.Summary(), "2 imported, 3 failed")

	var updated models.Project
	require.NoError(t, db.First(&updated, c.Project.ID).Error)
	assert.Equal(t, "Pasta line v2", updated.ProjectName)
	assert.Equal(t, 3, updated.Quantity)
	require.NotNil(t, updated.MachineType)
	assert.Equal(t, "Dryer", *updated.MachineType)

	var created models.Project
	require.NoError(t, db.Preload("Manager").Preload("Customer").
		Where("project_number = ?", "P-2024-02").First(&created).Error)
	assert.Equal(t, 4, created.Quantity)
	assert.Equal(t, "Jose Diaz", created.Manager.ManagerName)
	assert.Equal(t, "ES", created.Customer.CustomerCountry)

	var managers int64
	require.NoError(t, db.Model(&models.Manager{}).Count(&managers).Error)
	assert.Equal(t, int64(2), managers, "existing manager is reused")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.importRows.WithLabelValues(ImportKindProjects, "imported")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.importRows.WithLabelValues(ImportKindProjects, "failed")))
}

func TestImportService_ImportComponents(t *testing.T) {
	db := setupStoreDB(t)
	c := seedCatalog(t, db)
	svc := NewImportService(db, NewGormProjectStore(db), nil)

	sheet := buildSheet(t, [][]any{
		{"position_no", "component_no", "component_name", "unit_quantity", "total_quantity", "weight",
			"description", "size", "materials", "machine_type", "notes", "working_area"},
		{"1", "N-100", "Nozzle", 2, 4, "0,75", "inlet", "M12", "AISI 304", "", "", "wet"},
		{"2", "", "Missing number", 1, 1, "", "", "", "", "", "", ""},
		{"3", "V-200", "Valve", "1.5", 3, "", "", "", "", "", "", ""},
		{"4", "I-300", "Injector", "", "", "", "", "", "", "", "", ""},
	})

	result, err := svc.ImportComponents(context.Background(), sheet, c.OtherGroup.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 2, result.Failed)

	var imported []models.Component
	require.NoError(t, db.Where("group_id = ?", c.OtherGroup.ID).Order("id").Find(&imported).Error)
	require.Len(t, imported, 3, "the seeded component plus two imported rows")
	nozzle := imported[1]
	assert.Equal(t, "N-100", nozzle.ComponentNo)
	require.NotNil(t, nozzle.Weight)
	assert.InDelta(t, 0.75, *nozzle.Weight, 1e-9)
	require.NotNil(t, nozzle.TotalQuantity)
	assert.Equal(t, 4, *nozzle.TotalQuantity)
	assert.Nil(t, imported[2].UnitQuantity)
}

func TestImportService_ImportComponentsSkipsHeaderBlock(t *testing.T) {
	db := setupStoreDB(t)
	c := seedCatalog(t, db)
	svc := NewImportService(db, NewGormProjectStore(db), nil)

	sheet := buildSheet(t, [][]any{
		{"UNIMAK"},
		{"Group 25016"},
		{"position_no", "component_no", "component_name"},
		{"1", "K-1", "Clamp"},
	})
	result, err := svc.ImportComponents(context.Background(), sheet, c.Group.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Zero(t, result.Failed)
}

func TestImportService_FailedProjectRowLeavesNoPeople(t *testing.T) {
	db := setupStoreDB(t)
	seedCatalog(t, db)
	svc := NewImportService(db, NewGormProjectStore(db), nil)

	sheet := buildSheet(t, [][]any{
		{"project_number", "project_name", "quantity", "manager_name", "customer_name", "customer_country", "machine_type"},
		{"P-2024-07", "", 2, "Elif Demir", "Pastificio Srl", "IT", ""},
		{"P-2024-08", "Huge", "1e30", "Elif Demir", "Pastificio Srl", "IT", ""},
	})

	result, err := svc.ImportProjects(context.Background(), sheet)
	require.NoError(t, err)
	assert.Zero(t, result.Imported)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "project name is required")
	assert.Contains(t, result.Errors[1], "quantity is out of range")

	var managers, customers int64
	require.NoError(t, db.Model(&models.Manager{}).Where("manager_name = ?", "Elif Demir").Count(&managers).Error)
	require.NoError(t, db.Model(&models.Customer{}).Where("customer_name = ?", "Pastificio Srl").Count(&customers).Error)
	assert.Zero(t, managers, "manager created for a failed row is rolled back")
	assert.Zero(t, customers, "customer created for a failed row is rolled back")
}

func TestCellInt(t *testing.T) {
	n, err := cellInt("42", "quantity")
	require.NoError(t, err)
	assert.Equal(t, 42, *n)

	n, err = cellInt("2.0", "quantity")
	require.NoError(t, err)
	assert.Equal(t, 2, *n)

	n, err = cellInt("", "quantity")
	require.NoError(t, err)
	assert.Nil(t, n)

	for _, raw := range []string{"1e30", "-1e30", "99999999999"} {
		_, err = cellInt(raw, "quantity")
		requireStatus(t, err, http.StatusBadRequest)
		assert.Contains(t, err.Error(), "out of range", raw)
	}
	_, err = cellInt("2.5", "quantity")
	assert.Contains(t, err.Error(), "must be a whole number")
}

func TestImportService_Rejects(t *testing.T) {
	db := setupStoreDB(t)
	seedCatalog(t, db)
	svc := NewImportService(db, NewGormProjectStore(db), nil)
	ctx := context.Background()

	_, err := svc.ImportComponents(ctx, buildSheet(t, nil), 999, 1)
	requireStatus(t, err, http.StatusBadRequest)

	_, err = svc.ImportProjects(ctx, strings.NewReader("not a spreadsheet"))
	requireStatus(t, err, http.StatusBadRequest)
}

func TestImportResult_SummaryTruncates(t *testing.T) {
	r := &ImportResult{}
	for i := 0; i < maxReportedImportErrors+3; i++ {
		r.fail(i+2, InvalidInputError("bad"))
	}
	assert.Len(t, r.Errors, maxReportedImportErrors)
	assert.True(t, strings.HasSuffix(r.Summary(), "(and 3 more)"))
}
