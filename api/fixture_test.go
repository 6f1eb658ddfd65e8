package api

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/unimak/dftrack/api/models"
)

// setupStoreDB creates a migrated in-memory SQLite database with foreign keys on
func setupStoreDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:?_foreign_keys=1"), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err, "failed to open in-memory SQLite")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...), "failed to migrate")
	return db
}

// fixtureCatalog is the reference data most store tests start from
type fixtureCatalog struct {
	Recorder   models.User
	Manager    models.Manager
	Customer   models.Customer
	Engineer   models.Engineer
	Project    models.Project
	Group      models.Group
	OtherGroup models.Group
	Components []models.Component
	Foreign    models.Component
}

// seedCatalog creates a user, a project with two groups, two components in
// the first group and one component in the second
func seedCatalog(t *testing.T, db *gorm.DB) *fixtureCatalog {
	t.Helper()
	c := &fixtureCatalog{
		Recorder: models.User{Username: "recorder", PasswordHash: "x"},
		Manager:  models.Manager{ManagerName: "Ayse Kaya"},
		Customer: models.Customer{CustomerName: "Acme Foods", CustomerCountry: "TR"},
		Engineer: models.Engineer{EngineerName: "Carlos Ruiz"},
	}
	require.NoError(t, db.Create(&c.Recorder).Error)
	require.NoError(t, db.Create(&c.Manager).Error)
	require.NoError(t, db.Create(&c.Customer).Error)
	require.NoError(t, db.Create(&c.Engineer).Error)

	c.Project = models.Project{
		ProjectNumber: "P-2024-01",
		ProjectName:   "Pasta line",
		Quantity:      2,
		ManagerID:     c.Manager.ID,
		CustomerID:    c.Customer.ID,
	}
	require.NoError(t, db.Create(&c.Project).Error)

	c.Group = models.Group{ProjectID: c.Project.ID, EngineerID: &c.Engineer.ID, GroupNumber: "G-10", GroupName: "Dryer"}
	c.OtherGroup = models.Group{ProjectID: c.Project.ID, GroupNumber: "G-20", GroupName: "Press"}
	require.NoError(t, db.Create(&c.Group).Error)
	require.NoError(t, db.Create(&c.OtherGroup).Error)

	c.Components = []models.Component{
		{GroupID: c.Group.ID, ComponentNo: "C-1", ComponentName: "Fan"},
		{GroupID: c.Group.ID, ComponentNo: "C-2", ComponentName: "Belt"},
	}
	require.NoError(t, db.Create(&c.Components).Error)
	c.Foreign = models.Component{GroupID: c.OtherGroup.ID, ComponentNo: "C-9", ComponentName: "Die"}
	require.NoError(t, db.Create(&c.Foreign).Error)
	return c
}
