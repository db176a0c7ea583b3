package services

import (
	"strconv"
	"strings"

	"github.com/diewo77/training-tracker/internal/models"
)

// PlaceholderValues are values reviewers type when the real data is not
// known yet. A form carrying one of them is not ready for approval.
var PlaceholderValues = []string{"NA", "N/A", "na", "1111", "€1111.00", "€1111", "1111.00"}

// ReadyForApproval reports whether a form is complete enough to be approved.
// Drafts are never ready, nor are forms whose ida_class is "not sure" or
// that still hold a placeholder value in a checked field.
func ReadyForApproval(f *models.TrainingForm) bool {
	if f.IsDraft {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(f.IdaClass), models.IdaClassNotSure) {
		return false
	}
	for _, v := range readinessFields(f) {
		if isPlaceholder(v) {
			return false
		}
	}
	return true
}

func readinessFields(f *models.TrainingForm) []string {
	cost := ""
	if f.CourseCost != 0 {
		cost = strconv.FormatFloat(f.CourseCost, 'f', -1, 64)
	}
	return []string{
		f.TrainingName,
		models.Deref(f.TrainerName),
		models.Deref(f.SupplierName),
		models.Deref(f.LocationDetails),
		f.TrainingDescription,
		f.Notes,
		models.Deref(f.InvoiceNumber),
		models.Deref(f.ConcurClaim),
		f.IdaClass,
		cost,
	}
}

func isPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	for _, p := range PlaceholderValues {
		if v == p {
			return true
		}
	}
	return false
}
