package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/training-tracker/internal/models"
)

// ErrFormNotFound is returned when no live form matches an id.
var ErrFormNotFound = errors.New("training form not found")

// FormService persists training forms and their child rows.
type FormService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewFormService(db *gorm.DB) *FormService {
	return &FormService{db: db, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (s *FormService) WithClock(now func() time.Time) *FormService {
	s.now = now
	return s
}

// Insert stores the scalar fields of a new form and returns its id.
// Child collections on f are ignored; use the Insert*/Replace* methods.
func (s *FormService) Insert(ctx context.Context, f *models.TrainingForm) (uint, error) {
	if !f.ReadySet {
		f.ReadyForApproval = ReadyForApproval(f)
	}
	if f.SubmissionDate.IsZero() {
		f.SubmissionDate = s.now()
	}
	f.ID = 0
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(f).Error; err != nil {
		return 0, errors.Wrap(err, "insert training form")
	}
	return f.ID, nil
}

// Update overwrites the mutable scalar fields of form id. It reports false
// when the form does not exist. Submitter, approval and deletion state are
// left alone.
func (s *FormService) Update(ctx context.Context, id uint, f *models.TrainingForm) (bool, error) {
	ready := f.ReadyForApproval
	if !f.ReadySet {
		ready = ReadyForApproval(f)
	}
	res := s.db.WithContext(ctx).Model(&models.TrainingForm{}).Where("id = ?", id).Updates(map[string]any{
		"training_type":        f.TrainingType,
		"training_name":        f.TrainingName,
		"trainer_name":         f.TrainerName,
		"trainer_email":        f.TrainerEmail,
		"trainer_department":   f.TrainerDepartment,
		"supplier_name":        f.SupplierName,
		"location_type":        f.LocationType,
		"location_details":     f.LocationDetails,
		"start_date":           f.StartDate,
		"end_date":             f.EndDate,
		"training_hours":       f.TrainingHours,
		"course_cost":          f.CourseCost,
		"invoice_number":       f.InvoiceNumber,
		"concur_claim":         f.ConcurClaim,
		"training_description": f.TrainingDescription,
		"notes":                f.Notes,
		"ida_class":            f.IdaClass,
		"is_draft":             f.IsDraft,
		"ready_for_approval":   ready,
	})
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "update training form %d", id)
	}
	if res.RowsAffected == 0 {
		// Some drivers report 0 rows when nothing changed; confirm existence.
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.TrainingForm{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return false, errors.Wrap(err, "count training form")
		}
		return count > 0, nil
	}
	return true, nil
}

// Get loads a form with every child collection.
func (s *FormService) Get(ctx context.Context, id uint, includeDeleted bool) (*models.TrainingForm, error) {
	q := s.withChildren(s.db.WithContext(ctx))
	if !includeDeleted {
		q = q.Where("deleted = ?", false)
	}
	var f models.TrainingForm
	if err := q.First(&f, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, errors.Wrapf(err, "load training form %d", id)
	}
	return &f, nil
}

// List returns one page of forms matching flt and the total match count.
func (s *FormService) List(ctx context.Context, flt Filter) ([]models.TrainingForm, int64, error) {
	return s.list(ctx, s.db.WithContext(ctx), flt)
}

// ListForSubmitter is List restricted to the forms of one submitter.
func (s *FormService) ListForSubmitter(ctx context.Context, email string, flt Filter) ([]models.TrainingForm, int64, error) {
	return s.list(ctx, s.db.WithContext(ctx).Where("LOWER(submitter) = ?", strings.ToLower(email)), flt)
}

func (s *FormService) list(_ context.Context, base *gorm.DB, flt Filter) ([]models.TrainingForm, int64, error) {
	q := flt.apply(base.Model(&models.TrainingForm{}))
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count training forms")
	}
	var forms []models.TrainingForm
	err := q.Session(&gorm.Session{}).Preload("Trainees").
		Order(flt.Order()).
		Limit(PageSize).
		Offset(flt.Offset()).
		Find(&forms).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "list training forms")
	}
	return forms, total, nil
}

// ApprovedForExport returns approved, non-deleted forms with their
// children, newest submission first.
func (s *FormService) ApprovedForExport(ctx context.Context) ([]models.TrainingForm, error) {
	var forms []models.TrainingForm
	err := s.withChildren(s.db.WithContext(ctx)).
		Where("approved = ? AND deleted = ?", true, false).
		Order("submission_date DESC, id DESC").
		Find(&forms).Error
	if err != nil {
		return nil, errors.Wrap(err, "load approved forms")
	}
	return forms, nil
}

// ToggleApproval flips the approval flag of a live form and returns the new value.
func (s *FormService) ToggleApproval(ctx context.Context, id uint) (bool, error) {
	var approved bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var f models.TrainingForm
		if err := tx.Select("id", "approved").Where("deleted = ?", false).First(&f, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFormNotFound
			}
			return err
		}
		approved = !f.Approved
		return tx.Model(&models.TrainingForm{}).Where("id = ?", id).Update("approved", approved).Error
	})
	if err != nil {
		if errors.Is(err, ErrFormNotFound) {
			return false, err
		}
		return false, errors.Wrapf(err, "toggle approval of form %d", id)
	}
	return approved, nil
}

// SoftDelete marks a live form deleted, stamps the time and clears its
// approval in one statement. It reports false when no live form matched.
func (s *FormService) SoftDelete(ctx context.Context, id uint) (bool, error) {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.TrainingForm{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(map[string]any{"deleted": true, "deleted_datetimestamp": now, "approved": false})
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "soft delete form %d", id)
	}
	return res.RowsAffected > 0, nil
}

// Recover undeletes a form. Approval is not restored.
func (s *FormService) Recover(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.TrainingForm{}).
		Where("id = ? AND deleted = ?", id, true).
		Updates(map[string]any{"deleted": false, "deleted_datetimestamp": nil})
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "recover form %d", id)
	}
	return res.RowsAffected > 0, nil
}

// PurgeDeletedBefore physically removes forms soft-deleted before cutoff,
// with their child rows, and returns the purged ids.
func (s *FormService) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.TrainingForm{}).
			Where("deleted = ? AND deleted_datetimestamp IS NOT NULL AND deleted_datetimestamp < ?", true, cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		for _, child := range []any{&models.Trainee{}, &models.TravelExpense{}, &models.MaterialExpense{}, &models.Attachment{}} {
			if err := tx.Where("form_id IN ?", ids).Delete(child).Error; err != nil {
				return err
			}
		}
		return tx.Where("id IN ?", ids).Delete(&models.TrainingForm{}).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "purge deleted forms")
	}
	return ids, nil
}

// TrainerHours is one leaderboard line.
type TrainerHours struct {
	Name  string  `json:"name"`
	Hours float64 `json:"hours"`
}

// Leaderboard ranks trainers by delivered hours: training hours times
// trainee count, summed over approved forms.
func (s *FormService) Leaderboard(ctx context.Context) ([]TrainerHours, error) {
	var forms []models.TrainingForm
	err := s.db.WithContext(ctx).Preload("Trainees").
		Where("approved = ? AND deleted = ? AND trainer_name IS NOT NULL AND trainer_name <> ''", true, false).
		Find(&forms).Error
	if err != nil {
		return nil, errors.Wrap(err, "load leaderboard forms")
	}
	totals := map[string]float64{}
	for _, f := range forms {
		name := strings.TrimSpace(models.Deref(f.TrainerName))
		if name == "" {
			continue
		}
		totals[name] += f.TrainingHours * float64(len(f.Trainees))
	}
	board := make([]TrainerHours, 0, len(totals))
	for name, hours := range totals {
		board = append(board, TrainerHours{Name: name, Hours: hours})
	}
	sort.Slice(board, func(i, j int) bool {
		if board[i].Hours != board[j].Hours {
			return board[i].Hours > board[j].Hours
		}
		return board[i].Name < board[j].Name
	})
	return board, nil
}

func (s *FormService) withChildren(q *gorm.DB) *gorm.DB {
	byID := func(db *gorm.DB) *gorm.DB { return db.Order("id") }
	return q.Preload("Trainees", byID).
		Preload("TravelExpenses", byID).
		Preload("MaterialExpenses", byID).
		Preload("Attachments", byID)
}
