package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/diewo77/training-tracker/internal/models"
)

type AdminService struct {
	db *gorm.DB
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{db: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsAdmin reports whether email belongs to an admin.
func (s *AdminService) IsAdmin(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Admin{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "check admin")
	}
	return count > 0, nil
}

func (s *AdminService) List(ctx context.Context) ([]models.Admin, error) {
	var admins []models.Admin
	if err := s.db.WithContext(ctx).Order("email").Find(&admins).Error; err != nil {
		return nil, errors.Wrap(err, "list admins")
	}
	return admins, nil
}

// Add grants admin rights. It reports false when the email is already an admin.
func (s *AdminService) Add(ctx context.Context, email, firstName, lastName string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, errors.New("admin email is required")
	}
	ok, err := s.IsAdmin(ctx, email)
	if err != nil || ok {
		return false, err
	}
	admin := models.Admin{
		Email:         email,
		FirstName:     strings.TrimSpace(firstName),
		LastName:      strings.TrimSpace(lastName),
		ReceiveEmails: true,
	}
	if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return false, errors.Wrapf(err, "add admin %s", email)
	}
	return true, nil
}

// Remove revokes admin rights. It reports false when email was not an admin.
func (s *AdminService) Remove(ctx context.Context, email string) (bool, error) {
	res := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Delete(&models.Admin{})
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "remove admin %s", email)
	}
	return res.RowsAffected > 0, nil
}

// SetReceiveEmails sets the notification preference of an admin.
func (s *AdminService) SetReceiveEmails(ctx context.Context, email string, receive bool) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Admin{}).
		Where("email = ?", normalizeEmail(email)).
		Update("receive_emails", receive)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "update email preference of %s", email)
	}
	return res.RowsAffected > 0, nil
}

// NotificationEmails lists admins that want submission notifications.
func (s *AdminService) NotificationEmails(ctx context.Context) ([]string, error) {
	var emails []string
	err := s.db.WithContext(ctx).Model(&models.Admin{}).
		Where("receive_emails = ?", true).
		Order("email").
		Pluck("email", &emails).Error
	if err != nil {
		return nil, errors.Wrap(err, "load notification recipients")
	}
	return emails, nil
}
