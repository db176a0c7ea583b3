package services

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/diewo77/training-tracker/internal/models"
)

// DefaultDepartment is used for trainees entered without one.
const DefaultDepartment = "Engineering"

// InsertTrainees appends trainees to a form in one transaction.
func (s *FormService) InsertTrainees(ctx context.Context, formID uint, rows []models.Trainee) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return writeChildren(tx, formID, rows, false, prepareTrainee)
	})
}

// ReplaceTrainees deletes every trainee of a form and inserts rows.
func (s *FormService) ReplaceTrainees(ctx context.Context, formID uint, rows []models.Trainee) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return writeChildren(tx, formID, rows, true, prepareTrainee)
	})
}

// InsertTravelExpenses appends travel expenses to a form in one transaction.
func (s *FormService) InsertTravelExpenses(ctx context.Context, formID uint, rows []models.TravelExpense) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return writeChildren(tx, formID, rows, false, prepareTravel)
	})
}

// ReplaceTravelExpenses deletes every travel expense of a form and inserts rows.
func (s *FormService) ReplaceTravelExpenses(ctx context.Context, formID uint, rows []models.TravelExpense) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return writeChildren(tx, formID, rows, true, prepareTravel)
	})
}

// InsertMaterialExpenses appends material expenses to a form in one transaction.
func (s *FormService) InsertMaterialExpenses(ctx context.Context, formID uint, rows []models.MaterialExpense) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return writeChildren(tx, formID, rows, false, prepareMaterial)
	})
}

// ReplaceMaterialExpenses deletes every material expense of a form and inserts rows.
func (s *FormService) ReplaceMaterialExpenses(ctx context.Context, formID uint, rows []models.MaterialExpense) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return writeChildren(tx, formID, rows, true, prepareMaterial)
	})
}

// writeChildren optionally clears the rows of type T owned by formID, then
// inserts rows. Any invalid row aborts the batch.
func writeChildren[T any](tx *gorm.DB, formID uint, rows []T, replace bool, prepare func(formID uint, row *T) error) error {
	if replace {
		if err := tx.Where("form_id = ?", formID).Delete(new(T)).Error; err != nil {
			return errors.Wrapf(err, "clear %T rows of form %d", *new(T), formID)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	batch := make([]T, len(rows))
	copy(batch, rows)
	for i := range batch {
		if err := prepare(formID, &batch[i]); err != nil {
			return errors.Wrapf(err, "row %d", i+1)
		}
	}
	if err := tx.Create(&batch).Error; err != nil {
		return errors.Wrapf(err, "insert %T rows of form %d", *new(T), formID)
	}
	return nil
}

func prepareTrainee(formID uint, t *models.Trainee) error {
	t.ID = 0
	t.FormID = formID
	t.Name = strings.TrimSpace(t.Name)
	t.Email = strings.TrimSpace(t.Email)
	if t.Name == "" && t.Email == "" {
		return errors.New("trainee needs a name or an email")
	}
	if strings.TrimSpace(t.Department) == "" {
		t.Department = DefaultDepartment
	}
	return nil
}

func prepareTravel(formID uint, e *models.TravelExpense) error {
	e.ID = 0
	e.FormID = formID
	if time.Time(e.TravelDate).IsZero() {
		return errors.New("travel expense needs a travel date")
	}
	if e.Cost != nil && *e.Cost < 0 {
		return errors.New("travel cost cannot be negative")
	}
	if e.DistanceKm != nil && *e.DistanceKm < 0 {
		return errors.New("distance cannot be negative")
	}
	return nil
}

func prepareMaterial(formID uint, e *models.MaterialExpense) error {
	e.ID = 0
	e.FormID = formID
	if time.Time(e.PurchaseDate).IsZero() {
		return errors.New("material expense needs a purchase date")
	}
	if e.MaterialCost < 0 {
		return errors.New("material cost cannot be negative")
	}
	return nil
}

// AddAttachments stores attachment metadata for a form.
func (s *FormService) AddAttachments(ctx context.Context, formID uint, rows []models.Attachment) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return writeChildren(tx, formID, rows, false, func(formID uint, a *models.Attachment) error {
			a.ID = 0
			a.FormID = formID
			if strings.TrimSpace(a.Filename) == "" {
				return errors.New("attachment needs a filename")
			}
			return nil
		})
	})
}

// DeleteAttachments removes attachment rows of a form and returns the
// deleted rows so their files can be removed.
func (s *FormService) DeleteAttachments(ctx context.Context, formID uint, ids []uint) ([]models.Attachment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Attachment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("form_id = ? AND id IN ?", formID, ids).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Where("form_id = ? AND id IN ?", formID, ids).Delete(&models.Attachment{}).Error
	})
	if err != nil {
		return nil, errors.Wrapf(err, "delete attachments of form %d", formID)
	}
	return rows, nil
}

// UpdateAttachmentDescriptions sets new descriptions keyed by attachment id.
func (s *FormService) UpdateAttachmentDescriptions(ctx context.Context, formID uint, descriptions map[uint]string) error {
	if len(descriptions) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, desc := range descriptions {
			if err := tx.Model(&models.Attachment{}).
				Where("id = ? AND form_id = ?", id, formID).
				Update("description", strings.TrimSpace(desc)).Error; err != nil {
				return errors.Wrapf(err, "describe attachment %d", id)
			}
		}
		return nil
	})
}
