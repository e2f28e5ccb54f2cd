package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/hyfer-go-api/internal/models"
)

// UserRepository exposes roster and teacher lookups.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
	ListByGroup(ctx context.Context, groupID uint) ([]models.User, error)
	ListTeachersByRunningModule(ctx context.Context, runningID uint) ([]models.User, error)
	AddTeacher(ctx context.Context, runningID, userID uint) error
	RemoveTeacher(ctx context.Context, runningID, userID uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a GORM-backed user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) ListByGroup(ctx context.Context, groupID uint) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Joins("JOIN group_students ON group_students.user_id = users.id").
		Where("group_students.group_id = ?", groupID).
		Order("users.full_name ASC").
		Order("users.id ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) ListTeachersByRunningModule(ctx context.Context, runningID uint) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Joins("JOIN running_module_teachers ON running_module_teachers.user_id = users.id").
		Where("running_module_teachers.running_module_id = ?", runningID).
		Order("users.full_name ASC").
		Order("users.id ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) AddTeacher(ctx context.Context, runningID, userID uint) error {
	assignment := models.RunningModuleTeacher{RunningModuleID: runningID, UserID: userID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&assignment).Error
}

func (r *userRepository) RemoveTeacher(ctx context.Context, runningID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("running_module_id = ? AND user_id = ?", runningID, userID).
		Delete(&models.RunningModuleTeacher{}).Error
}
