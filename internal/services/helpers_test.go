package services

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/training-tracker/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Use a unique in-memory database per test to avoid cross-test collisions.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func date(s string) datatypes.Date {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return datatypes.Date(d)
}

func str(s string) *string { return &s }

func internalForm(name, submitter string) *models.TrainingForm {
	return &models.TrainingForm{
		TrainingType:        models.TrainingInternal,
		TrainingName:        name,
		TrainerName:         str("Jane Trainer"),
		TrainerEmail:        str("jane.trainer@example.com"),
		TrainerDepartment:   str("Quality"),
		LocationType:        models.LocationOnsite,
		StartDate:           date("2024-01-10"),
		EndDate:             date("2024-01-10"),
		TrainingHours:       4,
		TrainingDescription: "Induction",
		IdaClass:            "Class A - QQI Certified L1-10",
		Submitter:           submitter,
	}
}

func externalForm(name, submitter string) *models.TrainingForm {
	return &models.TrainingForm{
		TrainingType:        models.TrainingExternal,
		TrainingName:        name,
		SupplierName:        str("Acme Training Ltd"),
		LocationType:        models.LocationOffsite,
		LocationDetails:     str("Dublin"),
		StartDate:           date("2024-05-02"),
		EndDate:             date("2024-05-03"),
		TrainingHours:       16,
		CourseCost:          950,
		InvoiceNumber:       str("INV-77"),
		ConcurClaim:         str("CC-12"),
		TrainingDescription: "Lean six sigma",
		IdaClass:            "Class B - Industry Certified",
		Submitter:           submitter,
	}
}

func mustInsert(t *testing.T, svc *FormService, f *models.TrainingForm) uint {
	t.Helper()
	id, err := svc.Insert(t.Context(), f)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return id
}
