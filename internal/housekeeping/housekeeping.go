// Package housekeeping runs the nightly maintenance tasks: database backup,
// purge of old soft-deleted forms and the staff directory refresh.
package housekeeping

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/diewo77/training-tracker/internal/config"
	"github.com/diewo77/training-tracker/internal/logging"
	"github.com/diewo77/training-tracker/internal/lookup"
	"github.com/diewo77/training-tracker/internal/models"
	"github.com/diewo77/training-tracker/internal/storage"
)

// DefaultRetentionDays applies when no retention is configured.
const DefaultRetentionDays = 180

const backupStamp = "20060102_150405"

type Purger interface {
	PurgeDeletedBefore(ctx context.Context, cutoff time.Time) ([]uint, error)
}

type EmployeeFetcher interface {
	Employees(ctx context.Context) ([]models.Employee, error)
}

type EmployeeReplacer interface {
	ReplaceAll(ctx context.Context, rows []models.Employee) (int, error)
}

type EmployeeCache interface {
	InvalidateEmployees(ctx context.Context) error
}

// Dumper writes a PostgreSQL dump to path.
type Dumper func(ctx context.Context, cfg config.DatabaseConfig, path string) error

// Runner holds the dependencies of every task.
type Runner struct {
	DB         *gorm.DB
	Database   config.DatabaseConfig
	Config     config.HousekeepingConfig
	Production bool

	Forms     Purger
	Store     storage.Store
	Graph     EmployeeFetcher
	Employees EmployeeReplacer
	Cache     EmployeeCache
	CSVPath   string

	Log  logging.Logger
	Now  func() time.Time
	Dump Dumper
}

// Report summarises one run.
type Report struct {
	Skipped   bool
	Backup    string
	Pruned    []string
	Purged    []uint
	Employees int
	Errors    []error
}

// OK reports whether every task succeeded.
func (r Report) OK() bool { return len(r.Errors) == 0 }

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) log() logging.Logger {
	if r.Log != nil {
		return r.Log
	}
	return logging.Discard
}

func (r *Runner) retention() time.Duration {
	days := r.Config.RetentionDays
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// Run executes every task. Outside production nothing runs unless force
// is set. A failing task does not stop the others.
func (r *Runner) Run(ctx context.Context, force bool) Report {
	var rep Report
	if !r.Production && !force {
		r.log().Info("housekeeping skipped outside production")
		rep.Skipped = true
		return rep
	}
	r.log().Info("housekeeping started")

	if path, err := r.Backup(ctx); err != nil {
		rep.Errors = append(rep.Errors, err)
		r.log().Error("backup failed", err)
	} else {
		rep.Backup = path
		if pruned, err := r.PruneBackups(); err != nil {
			rep.Errors = append(rep.Errors, err)
			r.log().Error("backup prune failed", err)
		} else {
			rep.Pruned = pruned
		}
	}

	if ids, err := r.Purge(ctx); err != nil {
		rep.Errors = append(rep.Errors, err)
		r.log().Error("purge failed", err)
	} else {
		rep.Purged = ids
	}

	if r.Graph == nil {
		r.log().Warn("employee refresh skipped: Microsoft Graph is not configured")
	} else if n, err := r.RefreshEmployees(ctx); err != nil {
		rep.Errors = append(rep.Errors, err)
		r.log().Error("employee refresh failed", err)
	} else {
		rep.Employees = n
	}

	r.log().Info("housekeeping finished", map[string]interface{}{
		"backup": rep.Backup, "pruned": len(rep.Pruned), "purged": len(rep.Purged),
		"employees": rep.Employees, "errors": len(rep.Errors),
	})
	return rep
}

// Backup writes a timestamped copy of the database into the backup
// directory and returns its path.
func (r *Runner) Backup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(r.Config.BackupDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create backup dir")
	}
	stamp := r.now().Format(backupStamp)

	switch r.Database.Driver {
	case "postgres":
		path := filepath.Join(r.Config.BackupDir, "backup_"+stamp+".sql")
		dump := r.Dump
		if dump == nil {
			dump = PgDump
		}
		if err := dump(ctx, r.Database, path); err != nil {
			_ = os.Remove(path)
			return "", errors.Wrap(err, "pg_dump")
		}
		r.log().Info("postgres backup created", map[string]interface{}{"file": filepath.Base(path)})
		return path, nil
	default:
		path := filepath.Join(r.Config.BackupDir, "backup_"+stamp+".db")
		if err := r.DB.WithContext(ctx).Exec("VACUUM INTO ?", path).Error; err != nil {
			return "", errors.Wrap(err, "sqlite backup")
		}
		r.log().Info("sqlite backup created", map[string]interface{}{"file": filepath.Base(path)})
		return path, nil
	}
}

// PgDump shells out to pg_dump with the password in the environment.
func PgDump(ctx context.Context, cfg config.DatabaseConfig, path string) error {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"--host", cfg.Host,
		"--port", strconv.Itoa(cfg.Port),
		"--username", cfg.User,
		"--dbname", cfg.DBName,
		"--no-password",
		"--file", path,
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+cfg.Password)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "%s", out)
	}
	return nil
}

// PruneBackups removes backup_* files older than the retention window.
func (r *Runner) PruneBackups() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(r.Config.BackupDir, "backup_*"))
	if err != nil {
		return nil, errors.Wrap(err, "list backups")
	}
	cutoff := r.now().Add(-r.retention())
	var removed []string
	for _, m := range matches {
		st, err := os.Stat(m)
		if err != nil || st.IsDir() || !st.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(m); err != nil {
			return removed, errors.Wrapf(err, "remove %s", filepath.Base(m))
		}
		r.log().Info("old backup removed", map[string]interface{}{"file": filepath.Base(m)})
		removed = append(removed, filepath.Base(m))
	}
	return removed, nil
}

// Purge deletes forms soft-deleted before the retention window together
// with their stored attachments.
func (r *Runner) Purge(ctx context.Context) ([]uint, error) {
	ids, err := r.Forms.PurgeDeletedBefore(ctx, r.now().Add(-r.retention()))
	if err != nil {
		return nil, err
	}
	if r.Store != nil {
		for _, id := range ids {
			if err := r.Store.RemovePrefix(ctx, storage.FormPrefix(id)); err != nil {
				r.log().Warn("attachments not removed for purged form", err, map[string]interface{}{"form_id": id})
			}
		}
	}
	if len(ids) > 0 {
		r.log().Info("soft-deleted forms purged", map[string]interface{}{"count": len(ids)})
	}
	return ids, nil
}

// RefreshEmployees replaces the employees table with the directory list,
// rewrites the CSV snapshot and drops the cached lookup.
func (r *Runner) RefreshEmployees(ctx context.Context) (int, error) {
	rows, err := r.Graph.Employees(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "fetch employees")
	}
	if len(rows) == 0 {
		return 0, errors.New("directory returned no employees; keeping the current list")
	}
	n, err := r.Employees.ReplaceAll(ctx, rows)
	if err != nil {
		return 0, err
	}
	if r.CSVPath != "" {
		if err := lookup.WriteEmployeeCSVFile(r.CSVPath, rows); err != nil {
			r.log().Warn("employee snapshot not written", err)
		}
	}
	if r.Cache != nil {
		if err := r.Cache.InvalidateEmployees(ctx); err != nil {
			r.log().Warn("employee lookup cache not invalidated", err)
		}
	}
	r.log().Info("employees refreshed", map[string]interface{}{"count": n})
	return n, nil
}
