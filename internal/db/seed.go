package db

import (
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/training-tracker/internal/models"
)

// Seed inserts the default admins. It is idempotent: existing rows,
// including their email preference, are left untouched.
func Seed(d *gorm.DB, defaultAdmins []string) error {
	for _, email := range defaultAdmins {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		admin := models.Admin{Email: email, ReceiveEmails: true}
		if err := d.Clauses(clause.OnConflict{DoNothing: true}).Create(&admin).Error; err != nil {
			return errors.Wrapf(err, "seed admin %s", email)
		}
	}
	return nil
}
