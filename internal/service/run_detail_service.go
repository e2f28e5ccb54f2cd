package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/hyfer-go-api/internal/dto"
	"github.com/noah-isme/hyfer-go-api/internal/models"
	"github.com/noah-isme/hyfer-go-api/internal/repository"
)

const historyFetchConcurrency = 8

// RunDetailService assembles the full view of a single running module.
type RunDetailService interface {
	RunDetail(ctx context.Context, runningID uint) (dto.RunDetailResponse, error)
}

// RunDetailOptions toggles optional parts of the assembled detail.
type RunDetailOptions struct {
	IncludeHistory bool
}

type runDetailService struct {
	runs    repository.RunningModuleRepository
	groups  repository.GroupRepository
	modules repository.ModuleRepository
	users   repository.UserRepository
	history repository.HistoryRepository
	options RunDetailOptions
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewRunDetailService constructs the assembler.
func NewRunDetailService(runs repository.RunningModuleRepository, groups repository.GroupRepository, modules repository.ModuleRepository, users repository.UserRepository, history repository.HistoryRepository, options RunDetailOptions, logger zerolog.Logger) RunDetailService {
	return &runDetailService{
		runs:    runs,
		groups:  groups,
		modules: modules,
		users:   users,
		history: history,
		options: options,
		logger:  logger.With().Str("component", "run_detail_service").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/hyfer-go-api/internal/service/run_detail"),
	}
}

func (s *runDetailService) RunDetail(ctx context.Context, runningID uint) (dto.RunDetailResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "running_modules.detail", trace.WithAttributes(
		attribute.Int64("running_module.id", int64(runningID)),
		attribute.Bool("running_module.include_history", s.options.IncludeHistory),
	))
	defer span.End()

	detail, err := s.assemble(spanCtx, runningID)
	if err != nil {
		span.RecordError(err)
		return dto.RunDetailResponse{}, err
	}
	return detail, nil
}

func (s *runDetailService) assemble(ctx context.Context, runningID uint) (dto.RunDetailResponse, error) {
	var run models.RunningModule
	if err := retryRead(ctx, func() (err error) {
		run, err = s.runs.GetByID(ctx, runningID)
		return err
	}); err != nil {
		return dto.RunDetailResponse{}, lookupError(err, ErrRunningModuleNotFound)
	}

	var group models.Group
	if err := retryRead(ctx, func() (err error) {
		group, err = s.groups.GetByID(ctx, run.GroupID)
		return err
	}); err != nil {
		err = lookupError(err, ErrGroupNotFound)
		if errors.Is(err, ErrGroupNotFound) {
			s.logger.Error().Uint("running_module_id", run.ID).Uint("group_id", run.GroupID).Msg("running module references a missing group")
		}
		return dto.RunDetailResponse{}, err
	}

	var module models.Module
	if err := retryRead(ctx, func() (err error) {
		module, err = s.modules.GetByID(ctx, run.ModuleID)
		return err
	}); err != nil {
		err = lookupError(err, ErrModuleNotFound)
		if errors.Is(err, ErrModuleNotFound) {
			s.logger.Error().Uint("running_module_id", run.ID).Uint("module_id", run.ModuleID).Msg("running module references a missing module")
		}
		return dto.RunDetailResponse{}, err
	}

	var students []models.User
	if err := retryRead(ctx, func() (err error) {
		students, err = s.users.ListByGroup(ctx, run.GroupID)
		return err
	}); err != nil {
		return dto.RunDetailResponse{}, storeError(err)
	}

	roster, err := s.roster(ctx, run, students)
	if err != nil {
		return dto.RunDetailResponse{}, err
	}

	var teachers []models.User
	if err := retryRead(ctx, func() (err error) {
		teachers, err = s.users.ListTeachersByRunningModule(ctx, run.ID)
		return err
	}); err != nil {
		return dto.RunDetailResponse{}, storeError(err)
	}

	return dto.RunDetailResponse{
		RunningModule: dto.NewRunningModuleResponse(run),
		Module:        dto.NewModuleResponse(module),
		Group:         dto.NewGroupResponse(group),
		Students:      roster,
		Teachers:      dto.NewUserResponseSlice(teachers),
	}, nil
}

// roster converts students and, when enabled, attaches their normalized
// history. Histories are fetched concurrently; the first failure cancels the
// rest and fails the whole detail.
func (s *runDetailService) roster(ctx context.Context, run models.RunningModule, students []models.User) ([]dto.StudentResponse, error) {
	roster := make([]dto.StudentResponse, len(students))
	for i, student := range students {
		roster[i] = dto.StudentResponse{UserResponse: dto.NewUserResponse(student)}
	}

	if !s.options.IncludeHistory || len(students) == 0 {
		return roster, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(historyFetchConcurrency)
	for i, student := range students {
		eg.Go(func() error {
			var records []models.StudentHistory
			if err := retryRead(egCtx, func() (err error) {
				records, err = s.history.ListByStudent(egCtx, run.ID, student.ID)
				return err
			}); err != nil {
				return err
			}
			history := NormalizeHistory(run.Duration, records)
			roster[i].History = &history
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, storeError(err)
	}
	return roster, nil
}
