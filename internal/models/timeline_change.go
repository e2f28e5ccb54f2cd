package models

import (
	"time"

	"gorm.io/datatypes"
)

// Timeline change operations.
const (
	TimelineOpInsert = "insert"
	TimelineOpUpdate = "update"
	TimelineOpDelete = "delete"
	TimelineOpSplit  = "split"
	TimelineOpNotes  = "notes"
)

// TimelineChange is an audit entry written alongside every timeline mutation.
type TimelineChange struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	GroupID         uint              `gorm:"index;not null" json:"group_id"`
	Operation       string            `gorm:"size:16;not null" json:"operation"`
	Position        int               `json:"position"`
	RunningModuleID uint              `gorm:"index" json:"running_module_id"`
	ActorID         uint              `json:"actor_id"`
	ActorRole       string            `gorm:"size:32" json:"actor_role"`
	Metadata        datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt       time.Time         `json:"created_at"`
}
