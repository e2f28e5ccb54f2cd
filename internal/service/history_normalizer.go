package service

import (
	"github.com/noah-isme/hyfer-go-api/internal/dto"
	"github.com/noah-isme/hyfer-go-api/internal/models"
)

// NormalizeHistory expands sparse weekly records into dense attendance and
// homework series of exactly duration entries. Weeks without a record are 0.
// Records outside [0, duration) are ignored, and when a week appears more
// than once the first record in input order wins.
func NormalizeHistory(duration int, records []models.StudentHistory) dto.HistoryResponse {
	if duration < 0 {
		duration = 0
	}

	attendance := make([]int, duration)
	homework := make([]int, duration)
	seen := make([]bool, duration)

	for _, record := range records {
		week := record.WeekNum
		if week < 0 || week >= duration || seen[week] {
			continue
		}
		seen[week] = true
		attendance[week] = record.Attendance
		homework[week] = record.Homework
	}

	return dto.HistoryResponse{
		Duration:   duration,
		Attendance: attendance,
		Homework:   homework,
	}
}
