package models

import "time"

// Group is a class of students that follows its own timeline.
type Group struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	GroupName    string    `gorm:"size:128;uniqueIndex;not null" json:"group_name"`
	StartingDate time.Time `json:"starting_date"`
	Archived     bool      `gorm:"not null;default:false" json:"archived"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GroupStudent links a user to the group they are enrolled in.
type GroupStudent struct {
	GroupID uint `gorm:"primaryKey" json:"group_id"`
	UserID  uint `gorm:"primaryKey;index" json:"user_id"`
}
