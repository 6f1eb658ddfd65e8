package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/unimak/dftrack/api"
	"github.com/unimak/dftrack/internal/config"
	"github.com/unimak/dftrack/internal/dbconn"
	"github.com/unimak/dftrack/internal/slogging"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to configuration file")
		kind       = flag.String("kind", api.ImportKindComponents, "What the sheet holds: projects or components")
		file       = flag.String("file", "", "Path to the .xlsx file")
		groupID    = flag.Uint("group", 0, "Group the components belong to")
		skip       = flag.Int("skip", 6, "Header rows above the component data")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "-file is required")
		flag.Usage()
		os.Exit(2)
	}
	if *kind == api.ImportKindComponents && *groupID == 0 {
		fmt.Fprintln(os.Stderr, "-group is required for component imports")
		os.Exit(2)
	}

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
	defer func() { _ = gormDB.Close() }()

	f, err := os.Open(*file) // #nosec G304
	if err != nil {
		logger.Error("Failed to open %s: %v", *file, err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	db := gormDB.DB()
	importer := api.NewImportService(db, api.NewGormProjectStore(db), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var result *api.ImportResult
	switch *kind {
	case api.ImportKindProjects:
		result, err = importer.ImportProjects(ctx, f)
	case api.ImportKindComponents:
		result, err = importer.ImportComponents(ctx, f, *groupID, *skip)
	default:
		err = fmt.Errorf("unknown kind %q", *kind)
	}
	if err != nil {
		logger.Error("Import failed: %v", err)
		os.Exit(1)
	}

	fmt.Println(result.Summary())
	for _, msg := range result.Errors {
		fmt.Println("  " + msg)
	}
	if result.Failed > 0 {
		os.Exit(1)
	}
}
