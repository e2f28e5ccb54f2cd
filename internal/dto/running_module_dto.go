package dto

import (
	"time"

	"github.com/noah-isme/hyfer-go-api/internal/models"
)

// RunningModuleResponse serializes a timeline slot.
type RunningModuleResponse struct {
	ID          uint      `json:"id"`
	GroupID     uint      `json:"group_id"`
	ModuleID    uint      `json:"module_id"`
	Position    int       `json:"position"`
	Duration    int       `json:"duration"`
	Notes       string    `json:"notes"`
	ModuleName  string    `json:"module_name,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Color       string    `json:"color,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RunningModuleUpdateRequest is a partial patch of a slot. Nil fields are left untouched.
type RunningModuleUpdateRequest struct {
	Duration *int    `json:"duration" validate:"omitempty,min=1,max=104"`
	Notes    *string `json:"notes" validate:"omitempty,max=65535"`
}

// IsEmpty reports whether the patch carries no field at all.
func (r RunningModuleUpdateRequest) IsEmpty() bool {
	return r.Duration == nil && r.Notes == nil
}

// RunningModuleNotesRequest replaces the notes of a run.
type RunningModuleNotesRequest struct {
	Notes string `json:"notes" validate:"max=65535"`
}

// NewRunningModuleResponse converts a model into its response DTO.
func NewRunningModuleResponse(slot models.RunningModule) RunningModuleResponse {
	return RunningModuleResponse{
		ID:          slot.ID,
		GroupID:     slot.GroupID,
		ModuleID:    slot.ModuleID,
		Position:    slot.Position,
		Duration:    slot.Duration,
		Notes:       slot.Notes,
		ModuleName:  slot.Module.ModuleName,
		DisplayName: slot.Module.DisplayName,
		Color:       slot.Module.Color,
		UpdatedAt:   slot.UpdatedAt,
	}
}

// NewRunningModuleResponseSlice converts a slice of slots.
func NewRunningModuleResponseSlice(slots []models.RunningModule) []RunningModuleResponse {
	responses := make([]RunningModuleResponse, 0, len(slots))
	for _, slot := range slots {
		responses = append(responses, NewRunningModuleResponse(slot))
	}
	return responses
}
