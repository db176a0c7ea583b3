package db

import (
	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/diewo77/training-tracker/internal/config"
	"github.com/diewo77/training-tracker/internal/logging"
	"github.com/diewo77/training-tracker/internal/models"
)

// Migration modes accepted by MIGRATIONS.
const (
	MigrateAuto = "auto"
	MigrateSQL  = "sql"
	MigrateOff  = "off"
)

// MigrationsDir is where the versioned SQL files live.
var MigrationsDir = "file://migrations"

// Migrate brings the schema up to date. "sql" runs the versioned files with
// golang-migrate (PostgreSQL only); "auto" uses gorm AutoMigrate.
func Migrate(d *gorm.DB, cfg *config.Config, log logging.Logger) error {
	mode := cfg.App.Migrations
	switch mode {
	case MigrateOff:
		return nil
	case MigrateSQL:
		if cfg.Database.Driver == "postgres" {
			log.Info("running sql migrations", map[string]interface{}{"dir": MigrationsDir})
			return runSQLMigrations(cfg.Database.URL())
		}
		log.Warn("sql migrations only apply to postgres; falling back to AutoMigrate")
	}
	return AutoMigrate(d)
}

// AutoMigrate creates or updates every table from the models.
func AutoMigrate(d *gorm.DB) error {
	for _, m := range models.All() {
		if err := d.AutoMigrate(m); err != nil {
			return errors.Wrapf(err, "automigrate %T", m)
		}
	}
	for _, table := range []string{"training_forms", "trainees", "admins"} {
		if !d.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// runSQLMigrations executes migrations using golang-migrate file source.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New(MigrationsDir, dsn)
	if err != nil {
		return errors.Wrap(err, "init migrate")
	}
	defer m.Close()
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "migrate up")
	}
	return nil
}
