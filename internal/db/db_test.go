package db

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/training-tracker/internal/config"
	"github.com/diewo77/training-tracker/internal/logging"
	"github.com/diewo77/training-tracker/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	d, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return d
}

func TestMigrateAutoCreatesTables(t *testing.T) {
	d := openTestDB(t)
	cfg := &config.Config{App: config.AppConfig{Migrations: MigrateAuto}, Database: config.DatabaseConfig{Driver: "sqlite"}}
	if err := Migrate(d, cfg, logging.Discard); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, table := range []string{"users", "training_forms", "trainees", "travel_expenses", "material_expenses", "attachments", "training_catalog", "employees"} {
		if !d.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
}

func TestMigrateSQLOnSqliteFallsBack(t *testing.T) {
	d := openTestDB(t)
	cfg := &config.Config{App: config.AppConfig{Migrations: MigrateSQL}, Database: config.DatabaseConfig{Driver: "sqlite"}}
	if err := Migrate(d, cfg, logging.Discard); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !d.Migrator().HasTable("training_forms") {
		t.Fatal("expected AutoMigrate fallback")
	}
}

func TestSeedIdempotent(t *testing.T) {
	d := openTestDB(t)
	if err := AutoMigrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	admins := []string{"Boss@Example.com", " ", "second@example.com"}
	if err := Seed(d, admins); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Opt out, then seed again: the preference must survive.
	if err := d.Model(&models.Admin{}).Where("email = ?", "boss@example.com").Update("receive_emails", false).Error; err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := Seed(d, admins); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	var count int64
	d.Model(&models.Admin{}).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 admins got %d", count)
	}
	var boss models.Admin
	if err := d.First(&boss, "email = ?", "boss@example.com").Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if boss.ReceiveEmails {
		t.Fatal("reseed must not reset receive_emails")
	}
}
