package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:?_foreign_keys=1"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(AllModels()...))
	return db
}

func TestAllModels_Migrate(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{
		"users", "managers", "customers", "engineers", "projects",
		"project_groups", "components", "problems", "problem_components", "problem_steps",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasColumn(&Project{}, "machine_type"))
	assert.False(t, db.Migrator().HasColumn(&Project{}, "machine_top_group"), "no unused project columns")
}

func TestUser_BeforeSave_Defaults(t *testing.T) {
	db := setupTestDB(t)

	user := &User{Username: "alice", PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)

	assert.NotZero(t, user.ID)
	assert.Equal(t, "en", user.Language)
	assert.Equal(t, RoleUser, user.Role)
	assert.False(t, user.IsAdmin())
}

func TestUser_BeforeSave_Rejects(t *testing.T) {
	db := setupTestDB(t)

	assert.Error(t, db.Create(&User{Username: "bob", PasswordHash: "x", Language: "fr"}).Error)
	assert.Error(t, db.Create(&User{Username: "bob", PasswordHash: "x", Role: "root"}).Error)
	assert.Error(t, db.Create(&User{Username: "  ", PasswordHash: "x"}).Error)
}

func TestUser_UsernameUnique(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.Create(&User{Username: "alice", PasswordHash: "x"}).Error)
	assert.Error(t, db.Create(&User{Username: "alice", PasswordHash: "y"}).Error)
}

func TestProblemStep_BeforeSave(t *testing.T) {
	db := setupTestDB(t)
	problem := seedProblem(t, db)

	valid := &ProblemStep{ProblemID: problem.ID, StepNumber: 1, DFFilename: "df.xlsx", Status: InitialStepStatus}
	require.NoError(t, db.Create(valid).Error)

	bad := &ProblemStep{ProblemID: problem.ID, StepNumber: 1, DFFilename: "df.xlsx", Status: "Open"}
	assert.Error(t, db.Create(bad).Error)

	zero := &ProblemStep{ProblemID: problem.ID, StepNumber: 0, DFFilename: "df.xlsx", Status: StatusDesign}
	assert.Error(t, db.Create(zero).Error)
}

func TestProject_BeforeSave(t *testing.T) {
	db := setupTestDB(t)
	manager := Manager{ManagerName: "Ayse"}
	customer := Customer{CustomerName: "Acme", CustomerCountry: "TR"}
	require.NoError(t, db.Create(&manager).Error)
	require.NoError(t, db.Create(&customer).Error)

	err := db.Create(&Project{ProjectNumber: "P-1", ProjectName: "Press", Quantity: 0, ManagerID: manager.ID, CustomerID: customer.ID}).Error
	assert.Error(t, err)
}

func TestStepStatus(t *testing.T) {
	assert.Len(t, StepStatuses(), 11)
	assert.Equal(t, StatusWaiting, InitialStepStatus)

	s, err := ParseStepStatus(" Shipment_And_Packing ")
	require.NoError(t, err)
	assert.Equal(t, StatusShipmentAndPacking, s)
	assert.Equal(t, "Shipment And Packing", s.Label())

	_, err = ParseStepStatus("open")
	assert.Error(t, err)

	assert.True(t, StatusFinished.Closed())
	assert.True(t, StatusCancel.Closed())
	assert.False(t, StatusWaiting.Closed())

	// callers get a copy
	statuses := StepStatuses()
	statuses[0] = "tampered"
	assert.Equal(t, StatusDesign, StepStatuses()[0])
}

func TestOptionSets(t *testing.T) {
	assert.Len(t, Reasons().Options(), 5)
	assert.Len(t, Departments().Options(), 12)
	assert.Len(t, Actions().Options(), 4)
	assert.Len(t, Priorities().Options(), 3)

	key, ok := Reasons().Normalize("wrong_part")
	assert.True(t, ok)
	assert.Equal(t, "reasons.wrong_part", key)

	key, ok = Actions().Normalize("action.2")
	assert.True(t, ok)
	assert.Equal(t, "action.2", key)
	assert.Equal(t, "Fix On-spot", Actions().Label(key))

	_, ok = Priorities().Normalize("urgent")
	assert.False(t, ok)
	assert.Equal(t, "priority.urgent", Priorities().Label("priority.urgent"))

	opts := Departments().Options()
	opts[0].Default = "changed"
	assert.Equal(t, "Sales", Departments().Options()[0].Default)
}

func seedProblem(t *testing.T, db *gorm.DB) *Problem {
	t.Helper()

	user := User{Username: "recorder", PasswordHash: "x"}
	manager := Manager{ManagerName: "Mehmet"}
	customer := Customer{CustomerName: "Globex", CustomerCountry: "ES"}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&manager).Error)
	require.NoError(t, db.Create(&customer).Error)

	project := Project{ProjectNumber: "P-100", ProjectName: "Line", Quantity: 1, ManagerID: manager.ID, CustomerID: customer.ID}
	require.NoError(t, db.Create(&project).Error)
	group := Group{ProjectID: project.ID, GroupNumber: "G1", GroupName: "Frame"}
	require.NoError(t, db.Create(&group).Error)

	problem := Problem{ProjectID: project.ID, GroupID: group.ID, RecorderID: user.ID, DFNumber: "df_010124120000"}
	require.NoError(t, db.Create(&problem).Error)
	return &problem
}
