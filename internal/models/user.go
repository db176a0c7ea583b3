package models

import "time"

// User is the session subject. The row is upserted on every directory login
// and caches the profile the directory returned.
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Email       string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	DisplayName string     `gorm:"size:255" json:"display_name"`
	FirstName   string     `gorm:"size:255" json:"first_name"`
	LastName    string     `gorm:"size:255" json:"last_name"`
	Department  string     `gorm:"size:255" json:"department,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// FullName joins first and last name, falling back to the display name.
func (u *User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.DisplayName
	}
	return name
}
