package models

import "time"

// Admin grants administrative rights to an email address.
type Admin struct {
	Email         string    `gorm:"primaryKey;size:255" json:"email"`
	FirstName     string    `gorm:"size:255" json:"first_name"`
	LastName      string    `gorm:"size:255" json:"last_name"`
	ReceiveEmails bool      `gorm:"not null;default:true" json:"receive_emails"`
	CreatedAt     time.Time `json:"created_at"`
}

// TrainingCatalog is a course offered in the yearly training plan.
type TrainingCatalog struct {
	ID                uint     `gorm:"primaryKey" json:"id"`
	Area              string   `gorm:"size:255" json:"area"`
	TrainingName      string   `gorm:"size:255;index" json:"training_name"`
	QtyStaffAttending string   `gorm:"size:100" json:"qty_staff_attending"`
	TrainingDesc      string   `gorm:"type:text" json:"training_desc"`
	ChallengeLvl      string   `gorm:"size:100" json:"challenge_lvl"`
	SkillImpact       string   `gorm:"size:255" json:"skill_impact"`
	EvaluationMethod  string   `gorm:"size:255" json:"evaluation_method"`
	IdaClass          string   `gorm:"size:100" json:"ida_class"`
	TrainingType      string   `gorm:"size:50" json:"training_type"`
	TrainingHours     *float64 `json:"training_hours"`
	SupplierName      string   `gorm:"size:255" json:"supplier_name"`
	CourseCost        *float64 `json:"course_cost"`
}

func (TrainingCatalog) TableName() string { return "training_catalog" }

// Employee is one entry of the staff directory snapshot.
type Employee struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FirstName  string    `gorm:"size:255" json:"first_name"`
	LastName   string    `gorm:"size:255" json:"last_name"`
	Email      string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Department string    `gorm:"size:255" json:"department"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DisplayName returns "First Last".
func (e *Employee) DisplayName() string {
	switch {
	case e.FirstName == "":
		return e.LastName
	case e.LastName == "":
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// All lists every model managed by AutoMigrate, parents first.
func All() []any {
	return []any{
		&User{},
		&Admin{},
		&TrainingForm{},
		&Trainee{},
		&TravelExpense{},
		&MaterialExpense{},
		&Attachment{},
		&TrainingCatalog{},
		&Employee{},
	}
}
