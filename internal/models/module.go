package models

import "time"

// Module is a curriculum module from the catalog that groups run through.
type Module struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ModuleName      string    `gorm:"size:128;uniqueIndex;not null" json:"module_name"`
	DisplayName     string    `gorm:"size:255" json:"display_name"`
	Description     string    `gorm:"type:text" json:"description"`
	GitRepo         string    `gorm:"size:255" json:"git_repo"`
	Color           string    `gorm:"size:16" json:"color"`
	DefaultDuration int       `gorm:"not null;default:1" json:"default_duration"`
	Optional        bool      `gorm:"not null;default:false" json:"optional"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// WeeksOrDefault returns the canonical duration, never less than one week.
func (m Module) WeeksOrDefault() int {
	if m.DefaultDuration <= 0 {
		return 1
	}
	return m.DefaultDuration
}
