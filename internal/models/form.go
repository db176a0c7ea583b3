package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Training types.
const (
	TrainingInternal = "Internal Training"
	TrainingExternal = "External Training"
)

// Location types.
const (
	LocationOnsite  = "Onsite"
	LocationOffsite = "Offsite"
	LocationVirtual = "Virtual"
)

// IdaClassNotSure blocks a form from being ready for approval.
const IdaClassNotSure = "Not sure"

// IdaClasses lists the certification tiers offered on the form.
var IdaClasses = []string{
	"Class A - QQI Certified L1-10",
	"Class B - Industry Certified",
	"Class C - Internal Certificate",
	"Class D - Non-Certified",
	"Training not completed/ongoing",
	IdaClassNotSure,
}

// TrainingForm is one submitted training record with its expense rows.
type TrainingForm struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	TrainingType         string         `gorm:"size:50;not null;index" json:"training_type"`
	TrainingName         string         `gorm:"size:255;not null" json:"training_name"`
	TrainerName          *string        `gorm:"size:255" json:"trainer_name"`
	TrainerEmail         *string        `gorm:"size:255" json:"trainer_email"`
	TrainerDepartment    *string        `gorm:"size:255" json:"trainer_department"`
	SupplierName         *string        `gorm:"size:255" json:"supplier_name"`
	LocationType         string         `gorm:"size:50;not null" json:"location_type"`
	LocationDetails      *string        `gorm:"size:500" json:"location_details"`
	StartDate            datatypes.Date `gorm:"not null;index" json:"start_date"`
	EndDate              datatypes.Date `gorm:"not null" json:"end_date"`
	TrainingHours        float64        `gorm:"not null" json:"training_hours"`
	CourseCost           float64        `gorm:"not null" json:"course_cost"`
	InvoiceNumber        *string        `gorm:"size:255" json:"invoice_number"`
	ConcurClaim          *string        `gorm:"size:255" json:"concur_claim"`
	TrainingDescription  string         `gorm:"type:text" json:"training_description"`
	Notes                string         `gorm:"type:text" json:"notes"`
	IdaClass             string         `gorm:"size:100" json:"ida_class"`
	Submitter            string         `gorm:"size:255;index" json:"submitter"`
	Approved             bool           `gorm:"not null;index" json:"approved"`
	ReadyForApproval     bool           `gorm:"not null" json:"ready_for_approval"`
	IsDraft              bool           `gorm:"not null" json:"is_draft"`
	Deleted              bool           `gorm:"not null;index" json:"deleted"`
	DeletedDatetimestamp *time.Time     `gorm:"column:deleted_datetimestamp" json:"deleted_datetimestamp,omitempty"`
	SubmissionDate       time.Time      `gorm:"index" json:"submission_date"`
	CreatedAt            time.Time      `json:"created_at"`

	// ReadySet marks ReadyForApproval as explicitly provided; otherwise it is derived on save.
	ReadySet bool `gorm:"-" json:"-"`

	Trainees         []Trainee         `gorm:"foreignKey:FormID;constraint:OnDelete:CASCADE" json:"trainees,omitempty"`
	TravelExpenses   []TravelExpense   `gorm:"foreignKey:FormID;constraint:OnDelete:CASCADE" json:"travel_expenses,omitempty"`
	MaterialExpenses []MaterialExpense `gorm:"foreignKey:FormID;constraint:OnDelete:CASCADE" json:"material_expenses,omitempty"`
	Attachments      []Attachment      `gorm:"foreignKey:FormID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

// IsInternal reports whether the form records internal training.
func (f *TrainingForm) IsInternal() bool { return f.TrainingType == TrainingInternal }

// IsExternal reports whether the form records external training.
func (f *TrainingForm) IsExternal() bool { return f.TrainingType == TrainingExternal }

// GetSubmitter returns the owning user's email, used by ownership checks.
func (f *TrainingForm) GetSubmitter() string { return f.Submitter }

// Start returns the start date as time.Time.
func (f *TrainingForm) Start() time.Time { return time.Time(f.StartDate) }

// End returns the end date as time.Time.
func (f *TrainingForm) End() time.Time { return time.Time(f.EndDate) }

// Trainee attends the training recorded on a form.
type Trainee struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FormID     uint      `gorm:"index;not null" json:"form_id"`
	Name       string    `gorm:"size:255" json:"name"`
	Email      string    `gorm:"size:255" json:"email"`
	Department string    `gorm:"size:255;default:Engineering" json:"department"`
	CreatedAt  time.Time `json:"created_at"`
}

// Travel modes with a dedicated label on the claim sheet.
const (
	TravelMileage       = "mileage"
	TravelRail          = "rail"
	TravelEconomyFlight = "economy_flight"
	TravelBus           = "bus"
)

// TravelExpense is one trip taken for the training.
type TravelExpense struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	FormID            uint           `gorm:"index;not null" json:"form_id"`
	TravelDate        datatypes.Date `json:"travel_date"`
	Destination       string         `gorm:"size:255" json:"destination"`
	TravelerType      string         `gorm:"size:50" json:"traveler_type"`
	TravelerEmail     string         `gorm:"size:255" json:"traveler_email"`
	TravelerName      string         `gorm:"size:255" json:"traveler_name"`
	TravelMode        string         `gorm:"size:50" json:"travel_mode"`
	Cost              *float64       `json:"cost"`
	DistanceKm        *float64       `json:"distance_km"`
	ConcurClaimNumber *string        `gorm:"size:255" json:"concur_claim_number"`
	CreatedAt         time.Time      `json:"created_at"`
}

// MaterialExpense is one material purchase made for the training.
type MaterialExpense struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	FormID            uint           `gorm:"index;not null" json:"form_id"`
	PurchaseDate      datatypes.Date `json:"purchase_date"`
	SupplierName      string         `gorm:"size:255" json:"supplier_name"`
	InvoiceNumber     string         `gorm:"size:255" json:"invoice_number"`
	MaterialCost      float64        `json:"material_cost"`
	ConcurClaimNumber *string        `gorm:"size:255" json:"concur_claim_number"`
	CreatedAt         time.Time      `json:"created_at"`
}

// Attachment is the metadata of a supporting file stored under form_<id>/.
type Attachment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FormID      uint      `gorm:"index;not null" json:"form_id"`
	Filename    string    `gorm:"size:255;not null" json:"filename"`
	Description string    `gorm:"size:500" json:"description"`
	UploadedAt  time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

// LocalPart returns the part of an email before "@", or the input when there is none.
func LocalPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// Deref returns the pointed string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StrPtr returns a pointer to s, or nil when s is blank.
func StrPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
