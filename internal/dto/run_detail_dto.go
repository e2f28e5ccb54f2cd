package dto

import (
	"time"

	"github.com/noah-isme/hyfer-go-api/internal/models"
)

// ModuleResponse serializes catalog module metadata.
type ModuleResponse struct {
	ID              uint   `json:"id"`
	ModuleName      string `json:"module_name"`
	DisplayName     string `json:"display_name"`
	Description     string `json:"description"`
	GitRepo         string `json:"git_repo"`
	Color           string `json:"color"`
	DefaultDuration int    `json:"default_duration"`
	Optional        bool   `json:"optional"`
}

// GroupResponse serializes a group.
type GroupResponse struct {
	ID           uint      `json:"id"`
	GroupName    string    `json:"group_name"`
	StartingDate time.Time `json:"starting_date"`
	Archived     bool      `json:"archived"`
}

// UserResponse serializes a user without credentials.
type UserResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// HistoryResponse is a dense per-week series for one student in one run.
type HistoryResponse struct {
	Duration   int   `json:"duration"`
	Attendance []int `json:"attendance"`
	Homework   []int `json:"homework"`
}

// StudentResponse is a roster entry, optionally carrying weekly history.
type StudentResponse struct {
	UserResponse
	History *HistoryResponse `json:"history,omitempty"`
}

// RunDetailResponse composes everything known about a single run.
type RunDetailResponse struct {
	RunningModule RunningModuleResponse `json:"runningModule"`
	Module        ModuleResponse        `json:"module"`
	Group         GroupResponse         `json:"group"`
	Students      []StudentResponse     `json:"students"`
	Teachers      []UserResponse        `json:"teachers"`
}

// NewModuleResponse converts a module model.
func NewModuleResponse(module models.Module) ModuleResponse {
	return ModuleResponse{
		ID:              module.ID,
		ModuleName:      module.ModuleName,
		DisplayName:     module.DisplayName,
		Description:     module.Description,
		GitRepo:         module.GitRepo,
		Color:           module.Color,
		DefaultDuration: module.DefaultDuration,
		Optional:        module.Optional,
	}
}

// NewGroupResponse converts a group model.
func NewGroupResponse(group models.Group) GroupResponse {
	return GroupResponse{
		ID:           group.ID,
		GroupName:    group.GroupName,
		StartingDate: group.StartingDate,
		Archived:     group.Archived,
	}
}

// NewUserResponse converts a user model.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Username: user.Username,
		FullName: user.FullName,
		Email:    user.Email,
		Role:     user.Role,
	}
}

// NewUserResponseSlice converts a slice of users.
func NewUserResponseSlice(users []models.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, NewUserResponse(user))
	}
	return responses
}
