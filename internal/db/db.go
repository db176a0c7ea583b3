// Package db opens the database and keeps its schema and seed data current.
package db

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/training-tracker/internal/config"
	"github.com/diewo77/training-tracker/internal/logging"
)

const connectAttempts = 10

// Open connects to sqlite or PostgreSQL according to cfg.Driver.
// PostgreSQL connections are retried to give the server time to start.
func Open(cfg config.DatabaseConfig, log logging.Logger) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	switch cfg.Driver {
	case "sqlite", "":
		d, err := gorm.Open(sqlite.Open(cfg.Path), gcfg)
		if err != nil {
			return nil, errors.Wrapf(err, "open sqlite %s", cfg.Path)
		}
		log.Info("database connected", map[string]interface{}{"driver": "sqlite", "path": cfg.Path})
		return d, nil
	case "postgres":
		var d *gorm.DB
		var err error
		for i := 0; i < connectAttempts; i++ {
			d, err = gorm.Open(postgres.Open(cfg.DSN()), gcfg)
			if err == nil {
				break
			}
			log.Warn(fmt.Sprintf("database connection attempt %d/%d failed", i+1, connectAttempts), err)
			time.Sleep(2 * time.Second)
		}
		if err != nil {
			return nil, errors.Wrap(err, "connect postgres after retries")
		}
		if err := d.Exec("SELECT 1").Error; err != nil {
			return nil, errors.Wrap(err, "db ping")
		}
		log.Info("database connected", map[string]interface{}{
			"driver": "postgres", "host": cfg.Host, "port": cfg.Port, "dbname": cfg.DBName, "user": cfg.User,
		})
		return d, nil
	default:
		return nil, errors.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}
