package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/hyfer-go-api/internal/models"
)

// Migrate creates or updates every table the timeline service touches.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Module{},
		&models.Group{},
		&models.User{},
		&models.GroupStudent{},
		&models.RunningModule{},
		&models.RunningModuleTeacher{},
		&models.StudentHistory{},
		&models.TimelineChange{},
	)
}
