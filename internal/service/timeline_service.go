package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/hyfer-go-api/internal/dto"
	"github.com/noah-isme/hyfer-go-api/internal/models"
	"github.com/noah-isme/hyfer-go-api/internal/observability"
	"github.com/noah-isme/hyfer-go-api/internal/repository"
)

// TimelineService maintains the ordered slot sequence of every group.
type TimelineService interface {
	Timeline(ctx context.Context) ([]dto.RunningModuleResponse, error)
	RunningModules(ctx context.Context, groupID uint) ([]dto.RunningModuleResponse, error)
	Insert(ctx context.Context, actor Actor, groupID, moduleID uint, position int) ([]dto.RunningModuleResponse, error)
	Update(ctx context.Context, actor Actor, groupID uint, position int, patch dto.RunningModuleUpdateRequest) ([]dto.RunningModuleResponse, error)
	Delete(ctx context.Context, actor Actor, groupID uint, position int) ([]dto.RunningModuleResponse, error)
	Split(ctx context.Context, actor Actor, groupID uint, position int) ([]dto.RunningModuleResponse, error)
	UpdateNotes(ctx context.Context, actor Actor, runningID uint, notes string) (dto.RunningModuleResponse, error)
}

// mutation is the body of a structural change. It receives the group's slots
// already verified to be contiguous and returns the audit entry to record.
type mutation func(tx repository.GroupTimeline, slots []models.RunningModule) (*models.TimelineChange, error)

type timelineService struct {
	repo      repository.RunningModuleRepository
	modules   repository.ModuleRepository
	cache     *TimelineCache
	events    *TimelineEvents
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewTimelineService constructs the timeline engine. cache and events may be nil.
func NewTimelineService(repo repository.RunningModuleRepository, modules repository.ModuleRepository, cache *TimelineCache, events *TimelineEvents, validate *validator.Validate, logger zerolog.Logger) TimelineService {
	return &timelineService{
		repo:      repo,
		modules:   modules,
		cache:     cache,
		events:    events,
		validator: validate,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger.With().Str("component", "timeline_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/hyfer-go-api/internal/service/timeline"),
	}
}

func (s *timelineService) Timeline(ctx context.Context) ([]dto.RunningModuleResponse, error) {
	if cached, ok := s.cache.get(ctx); ok {
		return cached, nil
	}
	return s.loadTimeline(ctx)
}

func (s *timelineService) RunningModules(ctx context.Context, groupID uint) ([]dto.RunningModuleResponse, error) {
	var slots []models.RunningModule
	err := retryRead(ctx, func() error {
		var err error
		slots, err = s.repo.ListByGroup(ctx, groupID)
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}
	return dto.NewRunningModuleResponseSlice(slots), nil
}

func (s *timelineService) Insert(ctx context.Context, actor Actor, groupID, moduleID uint, position int) ([]dto.RunningModuleResponse, error) {
	if position < 0 {
		return nil, ErrInvalidPosition
	}

	module, err := s.modules.GetByID(ctx, moduleID)
	if err != nil {
		return nil, lookupError(err, ErrModuleNotFound)
	}

	return s.mutate(ctx, models.TimelineOpInsert, actor, groupID, position, func(tx repository.GroupTimeline, slots []models.RunningModule) (*models.TimelineChange, error) {
		if position > len(slots) {
			return nil, ErrInvalidPosition
		}

		if err := tx.Shift(position, 1); err != nil {
			return nil, err
		}

		slot := models.RunningModule{
			ModuleID: module.ID,
			Position: position,
			Duration: module.WeeksOrDefault(),
		}
		if err := tx.Create(&slot); err != nil {
			return nil, err
		}

		return &models.TimelineChange{
			Position:        position,
			RunningModuleID: slot.ID,
			Metadata:        datatypes.JSONMap{"module_id": module.ID, "duration": slot.Duration},
		}, nil
	})
}

func (s *timelineService) Update(ctx context.Context, actor Actor, groupID uint, position int, patch dto.RunningModuleUpdateRequest) ([]dto.RunningModuleResponse, error) {
	if err := s.validator.Struct(patch); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, ErrEmptyUpdate
	}
	if position < 0 {
		return nil, ErrRunningModuleNotFound
	}

	return s.mutate(ctx, models.TimelineOpUpdate, actor, groupID, position, func(tx repository.GroupTimeline, slots []models.RunningModule) (*models.TimelineChange, error) {
		slot, err := slotAt(slots, position)
		if err != nil {
			return nil, err
		}

		updates := map[string]interface{}{}
		metadata := datatypes.JSONMap{}
		if patch.Duration != nil {
			updates["duration"] = *patch.Duration
			metadata["duration"] = *patch.Duration
			metadata["previous_duration"] = slot.Duration
		}
		if patch.Notes != nil {
			updates["notes"] = s.sanitizeNotes(*patch.Notes)
			metadata["notes_changed"] = true
		}

		if err := tx.Update(slot.ID, updates); err != nil {
			return nil, err
		}

		return &models.TimelineChange{Position: position, RunningModuleID: slot.ID, Metadata: metadata}, nil
	})
}

func (s *timelineService) Delete(ctx context.Context, actor Actor, groupID uint, position int) ([]dto.RunningModuleResponse, error) {
	if position < 0 {
		return nil, ErrRunningModuleNotFound
	}

	return s.mutate(ctx, models.TimelineOpDelete, actor, groupID, position, func(tx repository.GroupTimeline, slots []models.RunningModule) (*models.TimelineChange, error) {
		slot, err := slotAt(slots, position)
		if err != nil {
			return nil, err
		}

		if err := tx.Delete(slot.ID); err != nil {
			return nil, err
		}
		if err := tx.Shift(position+1, -1); err != nil {
			return nil, err
		}

		return &models.TimelineChange{
			Position:        position,
			RunningModuleID: slot.ID,
			Metadata:        datatypes.JSONMap{"module_id": slot.ModuleID, "duration": slot.Duration},
		}, nil
	})
}

// Split divides the slot at position into two consecutive slots of the same
// module. The original keeps its id, teachers and history and takes the
// larger half; the new slot after it gets the remainder, a copy of the notes
// and the same teachers.
func (s *timelineService) Split(ctx context.Context, actor Actor, groupID uint, position int) ([]dto.RunningModuleResponse, error) {
	if position < 0 {
		return nil, ErrRunningModuleNotFound
	}

	return s.mutate(ctx, models.TimelineOpSplit, actor, groupID, position, func(tx repository.GroupTimeline, slots []models.RunningModule) (*models.TimelineChange, error) {
		slot, err := slotAt(slots, position)
		if err != nil {
			return nil, err
		}

		first, second, ok := splitDuration(slot.Duration)
		if !ok {
			return nil, ErrSlotTooShort
		}

		if err := tx.Shift(position+1, 1); err != nil {
			return nil, err
		}
		if err := tx.Update(slot.ID, map[string]interface{}{"duration": first}); err != nil {
			return nil, err
		}

		half := models.RunningModule{
			ModuleID: slot.ModuleID,
			Position: position + 1,
			Duration: second,
			Notes:    slot.Notes,
		}
		if err := tx.Create(&half); err != nil {
			return nil, err
		}
		if err := tx.CopyTeachers(slot.ID, half.ID); err != nil {
			return nil, err
		}

		return &models.TimelineChange{
			Position:        position,
			RunningModuleID: slot.ID,
			Metadata: datatypes.JSONMap{
				"split_into":        half.ID,
				"duration":          first,
				"split_duration":    second,
				"original_duration": slot.Duration,
			},
		}, nil
	})
}

func (s *timelineService) UpdateNotes(ctx context.Context, actor Actor, runningID uint, notes string) (dto.RunningModuleResponse, error) {
	if err := s.validator.Struct(dto.RunningModuleNotesRequest{Notes: notes}); err != nil {
		return dto.RunningModuleResponse{}, err
	}

	slot, err := s.repo.GetByID(ctx, runningID)
	if err != nil {
		return dto.RunningModuleResponse{}, lookupError(err, ErrRunningModuleNotFound)
	}

	clean := s.sanitizeNotes(notes)
	_, err = s.mutate(ctx, models.TimelineOpNotes, actor, slot.GroupID, slot.Position, func(tx repository.GroupTimeline, slots []models.RunningModule) (*models.TimelineChange, error) {
		current, ok := slotByID(slots, slot.ID)
		if !ok {
			return nil, ErrRunningModuleNotFound
		}
		if err := tx.Update(current.ID, map[string]interface{}{"notes": clean}); err != nil {
			return nil, err
		}
		return &models.TimelineChange{
			Position:        current.Position,
			RunningModuleID: current.ID,
			Metadata:        datatypes.JSONMap{"notes_changed": true},
		}, nil
	})
	if err != nil && !errors.Is(err, ErrTimelineRefreshFailed) {
		return dto.RunningModuleResponse{}, err
	}

	var updated models.RunningModule
	if err := retryRead(ctx, func() (err error) {
		updated, err = s.repo.GetByID(ctx, runningID)
		return err
	}); err != nil {
		return dto.RunningModuleResponse{}, fmt.Errorf("%w: %v", ErrTimelineRefreshFailed, err)
	}
	return dto.NewRunningModuleResponse(updated), nil
}

// mutate runs fn inside the group's transaction, then refreshes the cache,
// notifies subscribers and returns the full timeline.
func (s *timelineService) mutate(ctx context.Context, operation string, actor Actor, groupID uint, position int, fn mutation) ([]dto.RunningModuleResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "timeline."+operation, trace.WithAttributes(
		attribute.Int64("timeline.group_id", int64(groupID)),
		attribute.Int("timeline.position", position),
	))
	defer span.End()

	var change *models.TimelineChange
	start := time.Now()
	err := s.repo.WithinGroup(spanCtx, groupID, func(tx repository.GroupTimeline) error {
		slots, err := tx.Slots()
		if err != nil {
			return err
		}
		if err := checkContiguous(slots); err != nil {
			return err
		}

		change, err = fn(tx, slots)
		if err != nil {
			return err
		}

		change.Operation = operation
		change.ActorID = actor.ID
		change.ActorRole = actor.role()
		return tx.RecordChange(change)
	})
	observability.TimelineMutationLatency().WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		err = s.translateMutationError(err)
		observability.TimelineMutations().WithLabelValues(operation, mutationOutcome(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		event := s.logger.Warn()
		if errors.Is(err, ErrTimelineInvariant) || errors.Is(err, ErrStoreFailure) {
			event = s.logger.Error()
		}
		event.Err(err).Str("operation", operation).Uint("group_id", groupID).Int("position", position).Msg("timeline mutation rejected")
		return nil, err
	}

	observability.TimelineMutations().WithLabelValues(operation, "ok").Inc()
	s.logger.Info().
		Str("operation", operation).
		Uint("group_id", groupID).
		Int("position", change.Position).
		Uint("running_module_id", change.RunningModuleID).
		Uint("actor_id", actor.ID).
		Msg("timeline updated")

	s.cache.invalidate(spanCtx)
	s.events.Publish(spanCtx, dto.TimelineEventResponse{
		GroupID:         groupID,
		Operation:       operation,
		Position:        change.Position,
		RunningModuleID: change.RunningModuleID,
		OccurredAt:      change.CreatedAt,
	})

	timeline, err := s.loadTimeline(spanCtx)
	if err != nil {
		s.logger.Warn().Err(err).Str("operation", operation).Uint("group_id", groupID).Msg("timeline refresh failed after commit")
		return nil, fmt.Errorf("%w: %v", ErrTimelineRefreshFailed, err)
	}
	return timeline, nil
}

func (s *timelineService) loadTimeline(ctx context.Context) ([]dto.RunningModuleResponse, error) {
	version, cacheable := s.cache.version(ctx)

	var slots []models.RunningModule
	err := retryRead(ctx, func() error {
		var err error
		slots, err = s.repo.Timeline(ctx)
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}

	timeline := dto.NewRunningModuleResponseSlice(slots)
	if cacheable {
		s.cache.set(ctx, version, timeline)
	}
	return timeline, nil
}

// translateMutationError keeps domain errors intact; a missing record here can
// only come from the group lock.
func (s *timelineService) translateMutationError(err error) error {
	switch {
	case isDomainError(err):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrGroupNotFound
	default:
		return storeError(err)
	}
}

func (s *timelineService) sanitizeNotes(notes string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(notes))
}

func checkContiguous(slots []models.RunningModule) error {
	for index, slot := range slots {
		if slot.Position != index {
			return ErrTimelineInvariant
		}
	}
	return nil
}

func slotAt(slots []models.RunningModule, position int) (models.RunningModule, error) {
	if position < 0 || position >= len(slots) {
		return models.RunningModule{}, ErrRunningModuleNotFound
	}
	return slots[position], nil
}

func slotByID(slots []models.RunningModule, id uint) (models.RunningModule, bool) {
	for _, slot := range slots {
		if slot.ID == id {
			return slot, true
		}
	}
	return models.RunningModule{}, false
}

// splitDuration halves a duration, giving the odd week to the first half.
func splitDuration(duration int) (int, int, bool) {
	if duration < 2 {
		return 0, 0, false
	}
	second := duration / 2
	return duration - second, second, true
}

func mutationOutcome(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidPosition), errors.Is(err, ErrSlotTooShort):
		return "rejected"
	case errors.Is(err, ErrTimelineInvariant):
		return "invariant_violation"
	default:
		return "store_failure"
	}
}
