// Package export builds the Claim 5 workbook from approved training forms.
package export

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/training-tracker/internal/models"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	Filename    = "claim5_export.xlsx"

	dateLayout = "2006-01-02"
)

// Options selects the forms of an export. Quarters take precedence over
// the date range; with neither every approved form is exported.
type Options struct {
	Quarters  []string `json:"quarters"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
}

// QuarterInfo describes the export periods available to the user.
type QuarterInfo struct {
	Quarters []string `json:"quarters"`
	MinDate  *string  `json:"min_date"`
	MaxDate  *string  `json:"max_date"`
}

// Quarter returns the fiscal label "Q<n> <year>" of t.
func Quarter(t time.Time) string {
	return "Q" + strconv.Itoa((int(t.Month())+2)/3) + " " + strconv.Itoa(t.Year())
}

// DerivedDate is the date a form is filed under: created_at, else the
// submission date, else the start date.
func DerivedDate(f *models.TrainingForm) (time.Time, bool) {
	for _, t := range []time.Time{f.CreatedAt, f.SubmissionDate, f.Start()} {
		if !t.IsZero() {
			return t, true
		}
	}
	return time.Time{}, false
}

// Select keeps the forms matching opts, preserving order.
func Select(forms []models.TrainingForm, opts Options) []models.TrainingForm {
	quarters := map[string]bool{}
	for _, q := range opts.Quarters {
		if q = strings.TrimSpace(q); q != "" {
			quarters[q] = true
		}
	}
	byRange := opts.StartDate != "" && opts.EndDate != ""
	if len(quarters) == 0 && !byRange {
		return forms
	}

	var out []models.TrainingForm
	for _, f := range forms {
		d, ok := DerivedDate(&f)
		if !ok {
			continue
		}
		if len(quarters) > 0 {
			if quarters[Quarter(d)] {
				out = append(out, f)
			}
			continue
		}
		day := d.Format(dateLayout)
		if opts.StartDate <= day && day <= opts.EndDate {
			out = append(out, f)
		}
	}
	return out
}

// Quarters lists the quarters covered by forms, oldest first, with the
// earliest and latest derived dates.
func Quarters(forms []models.TrainingForm) QuarterInfo {
	info := QuarterInfo{Quarters: []string{}}
	type period struct{ year, q int }
	seen := map[period]bool{}
	var periods []period
	var minD, maxD time.Time
	for i := range forms {
		d, ok := DerivedDate(&forms[i])
		if !ok {
			continue
		}
		if minD.IsZero() || d.Before(minD) {
			minD = d
		}
		if d.After(maxD) {
			maxD = d
		}
		p := period{d.Year(), (int(d.Month()) + 2) / 3}
		if !seen[p] {
			seen[p] = true
			periods = append(periods, p)
		}
	}
	if len(periods) == 0 {
		return info
	}
	sort.Slice(periods, func(i, j int) bool {
		if periods[i].year != periods[j].year {
			return periods[i].year < periods[j].year
		}
		return periods[i].q < periods[j].q
	})
	for _, p := range periods {
		info.Quarters = append(info.Quarters, "Q"+strconv.Itoa(p.q)+" "+strconv.Itoa(p.year))
	}
	lo, hi := minD.Format(dateLayout), maxD.Format(dateLayout)
	info.MinDate, info.MaxDate = &lo, &hi
	return info
}

// CertificationClass maps an ida_class to the letter the claim expects.
func CertificationClass(ida string) string {
	switch {
	case ida == "Training not completed/ongoing":
		return "Ongoing"
	case strings.HasPrefix(ida, "Class ") && len(ida) > 6:
		return ida[6:7]
	}
	return ida
}

// TravelModeLabel maps a stored travel mode to its label on the Travel sheet.
func TravelModeLabel(mode string) string {
	switch mode {
	case models.TravelEconomyFlight:
		return "Economy Flight"
	case models.TravelMileage:
		return "Mileage"
	case models.TravelRail:
		return "Rail"
	case models.TravelBus:
		return "Bus"
	}
	return mode
}
