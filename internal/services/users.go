package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/training-tracker/internal/models"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Upsert records a successful login, refreshing the cached profile fields.
func (s *UserService) Upsert(ctx context.Context, u models.User) (*models.User, error) {
	u.Email = normalizeEmail(u.Email)
	if u.Email == "" {
		return nil, errors.New("user email is required")
	}
	now := time.Now()
	u.LastLoginAt = &now
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "first_name", "last_name", "department", "last_login_at", "updated_at"}),
	}).Create(&u).Error
	if err != nil {
		return nil, errors.Wrapf(err, "upsert user %s", u.Email)
	}
	// The conflict path does not report the existing id on every driver.
	var stored models.User
	if err := s.db.WithContext(ctx).Where("email = ?", u.Email).First(&stored).Error; err != nil {
		return nil, errors.Wrapf(err, "reload user %s", u.Email)
	}
	return &stored, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// Exists is used to verify that a session still refers to a known user.
func (s *UserService) Exists(ctx context.Context, id uint) bool {
	var count int64
	s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count)
	return count > 0
}
