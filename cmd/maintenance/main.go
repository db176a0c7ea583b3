// Command maintenance runs the nightly housekeeping once: database backup,
// purge of long deleted forms and the employee refresh. It can also load
// the training catalog from a CSV file.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/diewo77/training-tracker/internal/config"
	"github.com/diewo77/training-tracker/internal/db"
	"github.com/diewo77/training-tracker/internal/directory"
	"github.com/diewo77/training-tracker/internal/housekeeping"
	"github.com/diewo77/training-tracker/internal/logging"
	"github.com/diewo77/training-tracker/internal/lookup"
	"github.com/diewo77/training-tracker/internal/services"
	"github.com/diewo77/training-tracker/internal/storage"
)

var (
	importCatalogFlag = flag.String("import-catalog", "", "Load the training catalog from this CSV file and exit")
	replaceFlag       = flag.Bool("replace", true, "Replace the existing catalog when importing")
	forceFlag         = flag.Bool("force", false, "Run housekeeping outside the production profile")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	logger, closer, err := logging.New(cfg)
	if err != nil {
		log.Printf("Failed to open log: %v", err)
		return 1
	}
	defer closer.Close()

	dbConn, err := db.Open(cfg.Database, logger)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		return 1
	}
	if err := db.Migrate(dbConn, cfg, logger); err != nil {
		log.Printf("Migration failed: %v", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if *importCatalogFlag != "" {
		f, err := os.Open(*importCatalogFlag)
		if err != nil {
			log.Printf("Open catalog: %v", err)
			return 1
		}
		defer f.Close()
		n, err := services.NewCatalogService(dbConn).ImportCSV(ctx, f, *replaceFlag)
		if err != nil {
			log.Printf("Catalog import failed: %v", err)
			return 1
		}
		log.Printf("Imported %d catalog rows", n)
		return 0
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Printf("Failed to open attachment store: %v", err)
		return 1
	}
	cache, err := lookup.NewBackend(ctx, cfg.Cache)
	if err != nil {
		log.Printf("Failed to open lookup cache: %v", err)
		return 1
	}
	employees := services.NewEmployeeService(dbConn)
	lookups := lookup.NewService(cache, cfg.Cache.TTL, employees, services.NewCatalogService(dbConn), cfg.Graph.CSVPath, logger)

	runner := &housekeeping.Runner{
		DB:         dbConn,
		Database:   cfg.Database,
		Config:     cfg.Housekeeping,
		Production: cfg.IsProduction(),
		Forms:      services.NewFormService(dbConn),
		Store:      store,
		Employees:  employees,
		Cache:      lookups,
		CSVPath:    cfg.Graph.CSVPath,
		Log:        logger,
	}
	if graph, err := directory.NewGraphClient(ctx, cfg.Graph); err == nil {
		runner.Graph = graph
	} else {
		logger.Warn("employee refresh disabled", err)
	}

	report := runner.Run(ctx, *forceFlag)
	switch {
	case report.Skipped:
		log.Println("Housekeeping skipped outside production; use -force to run anyway")
	case report.OK():
		log.Printf("Housekeeping done: backup=%s pruned=%d purged=%d employees=%d",
			report.Backup, len(report.Pruned), len(report.Purged), report.Employees)
	default:
		for _, err := range report.Errors {
			log.Printf("Housekeeping error: %v", err)
		}
		return 1
	}
	return 0
}
