package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/hyfer-go-api/internal/dto"
	"github.com/noah-isme/hyfer-go-api/internal/models"
	"github.com/noah-isme/hyfer-go-api/internal/repository"
)

// Teacher assignment operations published on the event stream.
const (
	OperationTeacherAdded   = "teacher_added"
	OperationTeacherRemoved = "teacher_removed"
)

// TeacherAssignmentService manages the teachers attached to a running module.
type TeacherAssignmentService interface {
	AddTeacher(ctx context.Context, actor Actor, runningID, userID uint) ([]dto.UserResponse, error)
	RemoveTeacher(ctx context.Context, actor Actor, runningID, userID uint) ([]dto.UserResponse, error)
}

type teacherAssignmentService struct {
	runs   repository.RunningModuleRepository
	users  repository.UserRepository
	events *TimelineEvents
	logger zerolog.Logger
}

// NewTeacherAssignmentService constructs the teacher assignment service.
func NewTeacherAssignmentService(runs repository.RunningModuleRepository, users repository.UserRepository, events *TimelineEvents, logger zerolog.Logger) TeacherAssignmentService {
	return &teacherAssignmentService{
		runs:   runs,
		users:  users,
		events: events,
		logger: logger.With().Str("component", "teacher_assignment_service").Logger(),
	}
}

// AddTeacher is idempotent; assigning an existing teacher again is a no-op.
func (s *teacherAssignmentService) AddTeacher(ctx context.Context, actor Actor, runningID, userID uint) ([]dto.UserResponse, error) {
	run, err := s.runningModule(ctx, runningID)
	if err != nil {
		return nil, err
	}
	if err := s.requireTeacher(ctx, userID); err != nil {
		return nil, err
	}

	if err := s.users.AddTeacher(ctx, runningID, userID); err != nil {
		return nil, storeError(err)
	}

	return s.finish(ctx, actor, run, userID, OperationTeacherAdded)
}

// RemoveTeacher is idempotent; removing a user that is not assigned is a
// no-op. The user's current role is not checked, so a teacher who has since
// changed role can still be unassigned.
func (s *teacherAssignmentService) RemoveTeacher(ctx context.Context, actor Actor, runningID, userID uint) ([]dto.UserResponse, error) {
	run, err := s.runningModule(ctx, runningID)
	if err != nil {
		return nil, err
	}

	if err := s.users.RemoveTeacher(ctx, runningID, userID); err != nil {
		return nil, storeError(err)
	}

	return s.finish(ctx, actor, run, userID, OperationTeacherRemoved)
}

func (s *teacherAssignmentService) runningModule(ctx context.Context, runningID uint) (models.RunningModule, error) {
	var run models.RunningModule
	if err := retryRead(ctx, func() (err error) {
		run, err = s.runs.GetByID(ctx, runningID)
		return err
	}); err != nil {
		return models.RunningModule{}, lookupError(err, ErrRunningModuleNotFound)
	}
	return run, nil
}

func (s *teacherAssignmentService) requireTeacher(ctx context.Context, userID uint) error {
	var user models.User
	if err := retryRead(ctx, func() (err error) {
		user, err = s.users.GetByID(ctx, userID)
		return err
	}); err != nil {
		return lookupError(err, ErrTeacherNotFound)
	}
	if !user.IsTeacher() {
		return ErrTeacherNotFound
	}
	return nil
}

func (s *teacherAssignmentService) finish(ctx context.Context, actor Actor, run models.RunningModule, userID uint, operation string) ([]dto.UserResponse, error) {
	s.logger.Info().
		Str("operation", operation).
		Uint("running_module_id", run.ID).
		Uint("teacher_id", userID).
		Uint("actor_id", actor.ID).
		Msg("teacher assignment changed")

	s.events.Publish(ctx, dto.TimelineEventResponse{
		GroupID:         run.GroupID,
		Operation:       operation,
		Position:        run.Position,
		RunningModuleID: run.ID,
		OccurredAt:      time.Now().UTC(),
	})

	var teachers []models.User
	if err := retryRead(ctx, func() (err error) {
		teachers, err = s.users.ListTeachersByRunningModule(ctx, run.ID)
		return err
	}); err != nil {
		return nil, storeError(err)
	}
	return dto.NewUserResponseSlice(teachers), nil
}
