package main

import (
	"flag"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/unimak/dftrack/api/models"
	"github.com/unimak/dftrack/internal/config"
	"github.com/unimak/dftrack/internal/dbconn"
	"github.com/unimak/dftrack/internal/slogging"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to configuration file")
		dryRun     = flag.Bool("dry-run", false, "Only report which tables are missing")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := slogging.Initialize(cfg.LoggerConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := slogging.Get()
	defer func() { _ = logger.Close() }()

	gormDB, err := dbconn.NewGormDB(cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := gormDB.Close(); err != nil {
			logger.Error("Error closing database: %v", err)
		}
	}()

	missing := missingTables(gormDB.DB())
	if len(missing) == 0 {
		fmt.Println("All tables exist")
	} else {
		for _, table := range missing {
			fmt.Printf("  missing table: %s\n", table)
		}
	}
	if *dryRun {
		return
	}

	logger.Info("Running auto-migration on %s", gormDB.DatabaseType())
	if err := gormDB.AutoMigrate(models.AllModels()...); err != nil {
		logger.Error("Migration failed: %v", err)
		os.Exit(1)
	}

	if left := missingTables(gormDB.DB()); len(left) > 0 {
		logger.Error("Tables still missing after migration: %v", left)
		os.Exit(1)
	}
	fmt.Println("Database migration complete")
}

// missingTables returns the model tables the database does not have yet
func missingTables(db *gorm.DB) []string {
	var missing []string
	migrator := db.Migrator()
	for _, model := range models.AllModels() {
		if !migrator.HasTable(model) {
			missing = append(missing, tableName(db, model))
		}
	}
	return missing
}

func tableName(db *gorm.DB, model any) string {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return fmt.Sprintf("%T", model)
	}
	return stmt.Schema.Table
}
