// Package intake turns a submitted training form into validated records.
package intake

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"

	"github.com/diewo77/training-tracker/internal/models"
	"github.com/diewo77/training-tracker/validation"
)

// DateLayout is the wire format of every date field.
const DateLayout = "2006-01-02"

// FormInput is the submitted form before it becomes a models.TrainingForm.
type FormInput struct {
	TrainingType        string   `json:"training_type" validate:"required,training_type"`
	TrainingName        string   `json:"training_name" validate:"notblank"`
	TrainerName         string   `json:"trainer_name"`
	TrainerEmail        string   `json:"trainer_email"`
	TrainerDepartment   string   `json:"trainer_department"`
	SupplierName        string   `json:"supplier_name"`
	LocationType        string   `json:"location_type" validate:"required,location_type"`
	LocationDetails     string   `json:"location_details"`
	StartDate           string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate             string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	TrainingHours       *float64 `json:"training_hours" validate:"required,min=0"`
	CourseCost          *float64 `json:"course_cost"`
	InvoiceNumber       string   `json:"invoice_number"`
	ConcurClaim         string   `json:"concur_claim"`
	TrainingDescription string   `json:"training_description" validate:"notblank"`
	Notes               string   `json:"notes"`
	IdaClass            string   `json:"ida_class" validate:"required,ida_class"`
	IsDraft             bool     `json:"is_draft"`
	ReadyForApproval    *bool    `json:"ready_for_approval"`

	Trainees         []TraineeInput         `json:"trainees"`
	TravelExpenses   []TravelExpenseInput   `json:"travel_expenses"`
	MaterialExpenses []MaterialExpenseInput `json:"material_expenses"`

	// AttachmentCount is the number of attachments the form will have after
	// the request: accepted new uploads plus kept existing ones.
	AttachmentCount int `json:"-"`
	// KeptTrainees is the number of stored trainees an edit leaves in place
	// because trainees_data was not sent.
	KeptTrainees int `json:"-"`

	// parseErrors records values that could not be read from a form post.
	parseErrors validation.Violations
	// traineesUnreadable is set when trainees_data was sent but is not valid JSON.
	traineesUnreadable bool
}

// TraineeInput is one entry of trainees_data.
type TraineeInput struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

// TravelExpenseInput is one entry of travel_expenses_data.
type TravelExpenseInput struct {
	TravelDate        string `json:"travel_date"`
	Destination       string `json:"destination"`
	TravelerType      string `json:"traveler_type"`
	TravelerEmail     string `json:"traveler_email"`
	TravelerName      string `json:"traveler_name"`
	TravelMode        string `json:"travel_mode"`
	Cost              Amount `json:"cost"`
	DistanceKm        Amount `json:"distance_km"`
	ConcurClaimNumber string `json:"concur_claim_number"`
}

// MaterialExpenseInput is one entry of material_expenses_data.
type MaterialExpenseInput struct {
	PurchaseDate      string `json:"purchase_date"`
	SupplierName      string `json:"supplier_name"`
	InvoiceNumber     string `json:"invoice_number"`
	MaterialCost      Amount `json:"material_cost"`
	ConcurClaimNumber string `json:"concur_claim_number"`
}

// Amount is a number that may arrive as a JSON number, a numeric string,
// an empty string or null. Empty and null leave it unset.
type Amount struct {
	Value float64
	Valid bool
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" || s == "null" {
		*a = Amount{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid amount %q", s)
	}
	*a = Amount{Value: v, Valid: true}
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(a.Value, 'f', -1, 64)), nil
}

// Ptr returns the value or nil when unset.
func (a Amount) Ptr() *float64 {
	if !a.Valid {
		return nil
	}
	v := a.Value
	return &v
}

// Validate checks the input and returns the violated fields with their
// messages. An empty result means the input can be stored.
func (in *FormInput) Validate() validation.Violations {
	in.normalize()
	v, err := validation.FromValidator(Validate.Struct(*in), message)
	if err != nil {
		v = validation.Violations{"form": err.Error()}
	}
	for field, msg := range in.parseErrors {
		v[field] = msg
	}
	return v
}

func (in *FormInput) normalize() {
	for _, s := range []*string{
		&in.TrainingType, &in.TrainingName, &in.TrainerName, &in.TrainerEmail,
		&in.TrainerDepartment, &in.SupplierName, &in.LocationType, &in.LocationDetails,
		&in.StartDate, &in.EndDate, &in.InvoiceNumber, &in.ConcurClaim, &in.IdaClass,
	} {
		*s = strings.TrimSpace(*s)
	}
}

// dates parses start and end; ok is false when either is missing or invalid.
func (in FormInput) dates() (start, end time.Time, ok bool) {
	var err error
	if start, err = time.Parse(DateLayout, strings.TrimSpace(in.StartDate)); err != nil {
		return start, end, false
	}
	if end, err = time.Parse(DateLayout, strings.TrimSpace(in.EndDate)); err != nil {
		return start, end, false
	}
	return start, end, true
}

// ToRecord maps the input onto a TrainingForm owned by submitter. Fields
// that do not apply to the training or location type are cleared.
func (in *FormInput) ToRecord(submitter string) *models.TrainingForm {
	start, end, _ := in.dates()
	f := &models.TrainingForm{
		TrainingType:        in.TrainingType,
		TrainingName:        strings.TrimSpace(in.TrainingName),
		LocationType:        in.LocationType,
		StartDate:           datatypes.Date(start),
		EndDate:             datatypes.Date(end),
		ConcurClaim:         models.StrPtr(in.ConcurClaim),
		TrainingDescription: strings.TrimSpace(in.TrainingDescription),
		Notes:               strings.TrimSpace(in.Notes),
		IdaClass:            in.IdaClass,
		Submitter:           submitter,
		IsDraft:             in.IsDraft,
	}
	if in.TrainingHours != nil {
		f.TrainingHours = *in.TrainingHours
	}
	if in.TrainingType == models.TrainingInternal {
		f.TrainerName = models.StrPtr(in.TrainerName)
		f.TrainerEmail = models.StrPtr(in.TrainerEmail)
		f.TrainerDepartment = models.StrPtr(in.TrainerDepartment)
	} else {
		f.SupplierName = models.StrPtr(in.SupplierName)
		f.InvoiceNumber = models.StrPtr(in.InvoiceNumber)
		if in.CourseCost != nil {
			f.CourseCost = *in.CourseCost
		}
	}
	if in.LocationType == models.LocationOffsite {
		f.LocationDetails = models.StrPtr(in.LocationDetails)
	}
	if in.ReadyForApproval != nil {
		f.ReadyForApproval = *in.ReadyForApproval
		f.ReadySet = true
	}
	return f
}

// TraineeRows converts the trainee inputs into rows.
func (in *FormInput) TraineeRows() []models.Trainee {
	rows := make([]models.Trainee, 0, len(in.Trainees))
	for _, t := range in.Trainees {
		rows = append(rows, models.Trainee{
			Name:       strings.TrimSpace(t.Name),
			Email:      strings.TrimSpace(t.Email),
			Department: strings.TrimSpace(t.Department),
		})
	}
	return rows
}

// TravelRows converts the travel inputs into rows.
func (in *FormInput) TravelRows() ([]models.TravelExpense, error) {
	rows := make([]models.TravelExpense, 0, len(in.TravelExpenses))
	for i, e := range in.TravelExpenses {
		d, err := time.Parse(DateLayout, strings.TrimSpace(e.TravelDate))
		if err != nil {
			return nil, errors.Wrapf(err, "travel expense %d: travel_date", i+1)
		}
		rows = append(rows, models.TravelExpense{
			TravelDate:        datatypes.Date(d),
			Destination:       strings.TrimSpace(e.Destination),
			TravelerType:      strings.TrimSpace(e.TravelerType),
			TravelerEmail:     strings.TrimSpace(e.TravelerEmail),
			TravelerName:      strings.TrimSpace(e.TravelerName),
			TravelMode:        strings.TrimSpace(e.TravelMode),
			Cost:              e.Cost.Ptr(),
			DistanceKm:        e.DistanceKm.Ptr(),
			ConcurClaimNumber: models.StrPtr(e.ConcurClaimNumber),
		})
	}
	return rows, nil
}

// MaterialRows converts the material inputs into rows.
func (in *FormInput) MaterialRows() ([]models.MaterialExpense, error) {
	rows := make([]models.MaterialExpense, 0, len(in.MaterialExpenses))
	for i, e := range in.MaterialExpenses {
		d, err := time.Parse(DateLayout, strings.TrimSpace(e.PurchaseDate))
		if err != nil {
			return nil, errors.Wrapf(err, "material expense %d: purchase_date", i+1)
		}
		rows = append(rows, models.MaterialExpense{
			PurchaseDate:      datatypes.Date(d),
			SupplierName:      strings.TrimSpace(e.SupplierName),
			InvoiceNumber:     strings.TrimSpace(e.InvoiceNumber),
			MaterialCost:      e.MaterialCost.Value,
			ConcurClaimNumber: models.StrPtr(e.ConcurClaimNumber),
		})
	}
	return rows, nil
}

// FromRecord fills an input from a stored form, for the edit page.
func FromRecord(f *models.TrainingForm) *FormInput {
	hours := f.TrainingHours
	in := &FormInput{
		TrainingType:        f.TrainingType,
		TrainingName:        f.TrainingName,
		TrainerName:         models.Deref(f.TrainerName),
		TrainerEmail:        models.Deref(f.TrainerEmail),
		TrainerDepartment:   models.Deref(f.TrainerDepartment),
		SupplierName:        models.Deref(f.SupplierName),
		LocationType:        f.LocationType,
		LocationDetails:     models.Deref(f.LocationDetails),
		StartDate:           f.Start().Format(DateLayout),
		EndDate:             f.End().Format(DateLayout),
		TrainingHours:       &hours,
		InvoiceNumber:       models.Deref(f.InvoiceNumber),
		ConcurClaim:         models.Deref(f.ConcurClaim),
		TrainingDescription: f.TrainingDescription,
		Notes:               f.Notes,
		IdaClass:            f.IdaClass,
		IsDraft:             f.IsDraft,
		AttachmentCount:     len(f.Attachments),
	}
	if f.IsExternal() {
		cost := f.CourseCost
		in.CourseCost = &cost
	}
	for _, t := range f.Trainees {
		in.Trainees = append(in.Trainees, TraineeInput{Name: t.Name, Email: t.Email, Department: t.Department})
	}
	for _, e := range f.TravelExpenses {
		in.TravelExpenses = append(in.TravelExpenses, TravelExpenseInput{
			TravelDate:        time.Time(e.TravelDate).Format(DateLayout),
			Destination:       e.Destination,
			TravelerType:      e.TravelerType,
			TravelerEmail:     e.TravelerEmail,
			TravelerName:      e.TravelerName,
			TravelMode:        e.TravelMode,
			Cost:              amountOf(e.Cost),
			DistanceKm:        amountOf(e.DistanceKm),
			ConcurClaimNumber: models.Deref(e.ConcurClaimNumber),
		})
	}
	for _, e := range f.MaterialExpenses {
		in.MaterialExpenses = append(in.MaterialExpenses, MaterialExpenseInput{
			PurchaseDate:      time.Time(e.PurchaseDate).Format(DateLayout),
			SupplierName:      e.SupplierName,
			InvoiceNumber:     e.InvoiceNumber,
			MaterialCost:      Amount{Value: e.MaterialCost, Valid: true},
			ConcurClaimNumber: models.Deref(e.ConcurClaimNumber),
		})
	}
	return in
}

func amountOf(p *float64) Amount {
	if p == nil {
		return Amount{}
	}
	return Amount{Value: *p, Valid: true}
}
