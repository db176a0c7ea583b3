package services

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/diewo77/training-tracker/internal/models"
)

type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// All returns the catalog ordered by training name.
func (s *CatalogService) All(ctx context.Context) ([]models.TrainingCatalog, error) {
	var items []models.TrainingCatalog
	if err := s.db.WithContext(ctx).Order("training_name").Find(&items).Error; err != nil {
		return nil, errors.Wrap(err, "list training catalog")
	}
	return items, nil
}

// ImportCSV loads catalog rows from a CSV whose header names the columns
// (area, training_name, ..., course_cost). Rows without a training name are
// skipped and a blank area inherits the previous row's area, as in the
// training plan spreadsheet. When replace is set the catalog is emptied first.
func (s *CatalogService) ImportCSV(ctx context.Context, r io.Reader, replace bool) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return 0, errors.Wrap(err, "read catalog header")
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := cols["training_name"]; !ok {
		return 0, errors.New("catalog csv has no training_name column")
	}

	var items []models.TrainingCatalog
	var area string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, errors.Wrapf(err, "read catalog line %d", line)
		}
		get := func(name string) string {
			if i, ok := cols[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		if a := get("area"); a != "" {
			area = a
		}
		name := get("training_name")
		if name == "" {
			continue
		}
		items = append(items, models.TrainingCatalog{
			Area:              area,
			TrainingName:      name,
			QtyStaffAttending: get("qty_staff_attending"),
			TrainingDesc:      get("training_desc"),
			ChallengeLvl:      get("challenge_lvl"),
			SkillImpact:       get("skill_impact"),
			EvaluationMethod:  get("evaluation_method"),
			IdaClass:          get("ida_class"),
			TrainingType:      get("training_type"),
			TrainingHours:     parseOptionalFloat(get("training_hours")),
			SupplierName:      get("supplier_name"),
			CourseCost:        parseOptionalFloat(get("course_cost")),
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if replace {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.TrainingCatalog{}).Error; err != nil {
				return err
			}
		}
		if len(items) == 0 {
			return nil
		}
		return tx.CreateInBatches(&items, 100).Error
	})
	if err != nil {
		return 0, errors.Wrap(err, "store training catalog")
	}
	return len(items), nil
}

// parseOptionalFloat accepts "12", "12.5", "€1,200.00"; anything else is nil.
func parseOptionalFloat(raw string) *float64 {
	raw = strings.TrimSpace(strings.NewReplacer("€", "", ",", "").Replace(raw))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}
