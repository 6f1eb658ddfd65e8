package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/unimak/dftrack/api/models"
	"github.com/unimak/dftrack/internal/config"
	"github.com/unimak/dftrack/internal/dbconn"
	"github.com/unimak/dftrack/internal/slogging"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	skipRedis := flag.Bool("skip-redis", false, "Do not check the session store")
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

	gormDB, err := dbconn.NewGormDB(cfg.Database)
	if err != nil {
		fmt.Printf("✗ Failed to connect to %s database: %v\n", cfg.Database.Type, err)
		os.Exit(1)
	}
	defer func() { _ = gormDB.Close() }()
	fmt.Printf("✓ Connected to %s database\n\n", gormDB.DatabaseType())

	ok := checkTables(gormDB.DB())
	if ok {
		checkOpenSteps(gormDB.DB())
	}

	if !*skipRedis {
		redisDB, err := dbconn.NewRedisDB(cfg.Redis)
		if err != nil {
			fmt.Printf("\n✗ Session store unreachable: %v\n", err)
			ok = false
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			sessions, _ := redisDB.GetClient().Keys(ctx, dbconn.SessionKey("*")).Result()
			cancel()
			fmt.Printf("\n✓ Session store reachable (active sessions: %d)\n", len(sessions))
			_ = redisDB.Close()
		}
	}

	if ok {
		fmt.Println("\n✅ Database is properly set up!")
		return
	}
	fmt.Println("\n❌ Database is incomplete. Run the migrate command.")
	os.Exit(1)
}

// checkTables prints the row count of every model table
func checkTables(db *gorm.DB) bool {
	fmt.Println("Checking tables:")
	all := true
	for _, model := range models.AllModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			fmt.Printf("  ✗ Cannot parse model %T: %v\n", model, err)
			all = false
			continue
		}
		table := stmt.Schema.Table
		if !db.Migrator().HasTable(model) {
			fmt.Printf("  ✗ Table '%s' does not exist\n", table)
			all = false
			continue
		}
		var count int64
		if err := db.Model(model).Count(&count).Error; err != nil {
			fmt.Printf("  ✗ Error counting table '%s': %v\n", table, err)
			all = false
			continue
		}
		fmt.Printf("  ✓ Table '%s' exists (rows: %d)\n", table, count)
	}
	return all
}

// checkOpenSteps counts steps that are neither finished nor cancelled,
// going through database/sql so the placeholders need rebinding
func checkOpenSteps(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		fmt.Printf("  ✗ %v\n", err)
		return
	}
	query := dbconn.Rebind(dbconn.DialectName(db),
		"SELECT COUNT(*) FROM problem_steps WHERE status <> ? AND status <> ?")
	var open int64
	if err := sqlDB.QueryRow(query, string(models.StatusFinished), string(models.StatusCancel)).Scan(&open); err != nil {
		fmt.Printf("  ✗ Error counting open steps: %v\n", err)
		return
	}
	fmt.Printf("\nOpen problem steps: %d\n", open)
}
