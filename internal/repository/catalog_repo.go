package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/hyfer-go-api/internal/models"
)

// ModuleRepository looks up curriculum modules.
type ModuleRepository interface {
	GetByID(ctx context.Context, id uint) (models.Module, error)
}

// GroupRepository looks up groups.
type GroupRepository interface {
	GetByID(ctx context.Context, id uint) (models.Group, error)
}

type moduleRepository struct {
	db *gorm.DB
}

// NewModuleRepository constructs a module catalog repository.
func NewModuleRepository(db *gorm.DB) ModuleRepository {
	return &moduleRepository{db: db}
}

func (r *moduleRepository) GetByID(ctx context.Context, id uint) (models.Module, error) {
	var module models.Module
	if err := r.db.WithContext(ctx).First(&module, id).Error; err != nil {
		return models.Module{}, err
	}
	return module, nil
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository constructs a group repository.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) GetByID(ctx context.Context, id uint) (models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).First(&group, id).Error; err != nil {
		return models.Group{}, err
	}
	return group, nil
}
