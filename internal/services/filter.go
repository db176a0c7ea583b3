package services

import (
	"math"
	"strings"
	"time"

	"gorm.io/gorm"
)

// PageSize is the number of forms per listing page.
const PageSize = 10

// Delete-status values accepted by Filter.DeleteStatus.
const (
	StatusNotDeleted = "not_deleted"
	StatusDeleted    = "deleted"
	StatusApproved   = "approved"
	StatusUnapproved = "unapproved"
	StatusDraft      = "draft"
	StatusAll        = "all"
)

// sortColumns whitelists the columns a listing may be ordered by.
var sortColumns = map[string]string{
	"submission_date": "submission_date",
	"start_date":      "start_date",
	"end_date":        "end_date",
	"training_name":   "training_name",
	"cost":            "course_cost",
}

// searchColumns are matched case-insensitively by Filter.Search.
var searchColumns = []string{
	"training_name",
	"trainer_name",
	"trainer_email",
	"supplier_name",
	"location_details",
	"training_description",
}

// Filter narrows and orders a form listing.
type Filter struct {
	Search         string
	DateFrom       *time.Time
	DateTo         *time.Time
	TrainingType   string
	ApprovalStatus string
	DeleteStatus   string
	SortBy         string
	SortOrder      string
	Page           int
}

// HasFilters reports whether any narrowing criterion is set.
func (f Filter) HasFilters() bool {
	return f.Search != "" || f.DateFrom != nil || f.DateTo != nil || f.TrainingType != "" ||
		f.ApprovalStatus != "" || (f.DeleteStatus != "" && f.DeleteStatus != StatusNotDeleted)
}

// Offset returns the row offset of the requested page.
func (f Filter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * PageSize
}

// TotalPages returns ceil(total/PageSize).
func TotalPages(total int64) int {
	return int(math.Ceil(float64(total) / float64(PageSize)))
}

// Order returns the ORDER BY clause for the filter.
func (f Filter) Order() string {
	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "submission_date"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "ASC") {
		dir = "ASC"
	}
	return col + " " + dir + ", id " + dir
}

// apply adds the WHERE clauses of the filter to q.
func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		clauses := make([]string, len(searchColumns))
		args := make([]any, len(searchColumns))
		for i, col := range searchColumns {
			clauses[i] = "LOWER(" + col + ") LIKE ?"
			args[i] = pattern
		}
		q = q.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}
	if f.DateFrom != nil {
		q = q.Where("start_date >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.Where("end_date <= ?", *f.DateTo)
	}
	if f.TrainingType != "" {
		q = q.Where("training_type = ?", f.TrainingType)
	}
	switch f.ApprovalStatus {
	case "approved":
		q = q.Where("approved = ?", true)
	case "unapproved":
		q = q.Where("approved = ?", false)
	}
	switch f.DeleteStatus {
	case StatusAll:
	case StatusDeleted:
		q = q.Where("deleted = ?", true)
	case StatusApproved:
		q = q.Where("deleted = ? AND approved = ?", false, true)
	case StatusUnapproved:
		q = q.Where("deleted = ? AND approved = ? AND is_draft = ?", false, false, false)
	case StatusDraft:
		q = q.Where("deleted = ? AND is_draft = ?", false, true)
	default:
		q = q.Where("deleted = ?", false)
	}
	return q
}
