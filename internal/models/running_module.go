package models

import "time"

// RunningModule is one module scheduled into a group's timeline.
// Positions within a group are unique and dense, starting at zero.
type RunningModule struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;uniqueIndex:idx_running_modules_group_position,priority:1" json:"group_id"`
	ModuleID  uint      `gorm:"not null;index" json:"module_id"`
	Position  int       `gorm:"not null;uniqueIndex:idx_running_modules_group_position,priority:2" json:"position"`
	Duration  int       `gorm:"not null;default:1" json:"duration"`
	Notes     string    `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Module    Module    `gorm:"foreignKey:ModuleID" json:"-"`
}

// RunningModuleTeacher assigns a teacher to a running module.
type RunningModuleTeacher struct {
	RunningModuleID uint      `gorm:"primaryKey" json:"running_module_id"`
	UserID          uint      `gorm:"primaryKey;index" json:"user_id"`
	CreatedAt       time.Time `json:"created_at"`
}
