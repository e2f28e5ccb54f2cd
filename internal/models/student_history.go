package models

import "time"

// StudentHistory stores one week of attendance and homework for a student in a run.
type StudentHistory struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	RunningModuleID uint      `gorm:"not null;index:idx_student_history_run_user,priority:1" json:"running_module_id"`
	UserID          uint      `gorm:"not null;index:idx_student_history_run_user,priority:2" json:"user_id"`
	WeekNum         int       `gorm:"not null" json:"week_num"`
	Attendance      int       `gorm:"not null;default:0" json:"attendance"`
	Homework        int       `gorm:"not null;default:0" json:"homework"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName keeps the table name used by the attendance tooling.
func (StudentHistory) TableName() string {
	return "students_history"
}
