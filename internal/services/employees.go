package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/diewo77/training-tracker/internal/models"
)

type EmployeeService struct {
	db *gorm.DB
}

func NewEmployeeService(db *gorm.DB) *EmployeeService {
	return &EmployeeService{db: db}
}

// All returns employees sorted by last then first name.
func (s *EmployeeService) All(ctx context.Context) ([]models.Employee, error) {
	var employees []models.Employee
	if err := s.db.WithContext(ctx).Order("last_name, first_name").Find(&employees).Error; err != nil {
		return nil, errors.Wrap(err, "list employees")
	}
	return employees, nil
}

func (s *EmployeeService) ByEmail(ctx context.Context, email string) (*models.Employee, error) {
	var e models.Employee
	if err := s.db.WithContext(ctx).Where("LOWER(email) = ?", normalizeEmail(email)).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ReplaceAll swaps the whole employee table for rows in one transaction.
// Rows without an email are skipped; the first row wins on duplicates.
func (s *EmployeeService) ReplaceAll(ctx context.Context, rows []models.Employee) (int, error) {
	seen := map[string]bool{}
	batch := make([]models.Employee, 0, len(rows))
	for _, e := range rows {
		email := strings.TrimSpace(e.Email)
		key := strings.ToLower(email)
		if email == "" || seen[key] {
			continue
		}
		seen[key] = true
		batch = append(batch, models.Employee{
			FirstName:  strings.TrimSpace(e.FirstName),
			LastName:   strings.TrimSpace(e.LastName),
			Email:      email,
			Department: strings.TrimSpace(e.Department),
		})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Employee{}).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		return tx.CreateInBatches(&batch, 200).Error
	})
	if err != nil {
		return 0, errors.Wrap(err, "replace employees")
	}
	return len(batch), nil
}
