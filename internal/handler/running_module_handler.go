package handler

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hyfer-go-api/internal/dto"
	"github.com/noah-isme/hyfer-go-api/internal/middleware"
	"github.com/noah-isme/hyfer-go-api/internal/models"
	"github.com/noah-isme/hyfer-go-api/internal/service"
	"github.com/noah-isme/hyfer-go-api/internal/utils"
)

// RunningModuleHandler exposes the group timelines and run details.
type RunningModuleHandler struct {
	timeline  service.TimelineService
	details   service.RunDetailService
	teachers  service.TeacherAssignmentService
	validator *validator.Validate
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewRunningModuleHandler builds the handler. timeout bounds each store call; zero disables it.
func NewRunningModuleHandler(timeline service.TimelineService, details service.RunDetailService, teachers service.TeacherAssignmentService, validator *validator.Validate, timeout time.Duration, logger zerolog.Logger) *RunningModuleHandler {
	return &RunningModuleHandler{
		timeline:  timeline,
		details:   details,
		teachers:  teachers,
		validator: validator,
		timeout:   timeout,
		logger:    logger.With().Str("component", "running_module_handler").Logger(),
	}
}

// Register binds the running module routes. Static segments are registered
// before the parameterised ones so /timeline never matches /:groupId.
func (h *RunningModuleHandler) Register(router fiber.Router) {
	teacherOnly := middleware.RequireRole(models.UserRoleTeacher)

	router.Get("/timeline", middleware.RequireUser(), h.getTimeline)
	router.Get("/details/:runningId", middleware.RequireRole(models.UserRoleTeacher, models.UserRoleStudent), h.getDetails)
	router.Patch("/add/:moduleId/:groupId/:position", teacherOnly, h.addModule)
	router.Patch("/update/:groupId/:position", teacherOnly, h.updateModule)
	router.Patch("/split/:groupId/:position", teacherOnly, h.splitModule)
	router.Patch("/notes/:runningId", teacherOnly, h.updateNotes)
	router.Post("/teacher/:runningId/:userId", teacherOnly, h.addTeacher)
	router.Delete("/teacher/:runningId/:userId", teacherOnly, h.removeTeacher)
	router.Get("/:groupId", teacherOnly, h.getRunningModules)
	router.Delete("/:groupId/:position", teacherOnly, h.deleteModule)
}

func (h *RunningModuleHandler) getTimeline(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	timeline, err := h.timeline.Timeline(ctx)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "timeline retrieved", timeline)
}

func (h *RunningModuleHandler) getRunningModules(c *fiber.Ctx) error {
	groupID, err := parseUintParam(c, "groupId")
	if err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "INVALID_PARAMETER", err.Error())
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	slots, err := h.timeline.RunningModules(ctx, groupID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "running modules retrieved", slots)
}

func (h *RunningModuleHandler) getDetails(c *fiber.Ctx) error {
	runningID, err := parseUintParam(c, "runningId")
	if err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "INVALID_PARAMETER", err.Error())
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	detail, err := h.details.RunDetail(ctx, runningID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "running module details retrieved", detail)
}

func (h *RunningModuleHandler) addModule(c *fiber.Ctx) error {
	moduleID, err := parseUintParam(c, "moduleId")
	if err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "INVALID_PARAMETER", err.Error())
	}
	groupID, position, err := groupPosition(c)
	if err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "INVALID_PARAMETER", err.Error())
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	timeline, err := h.timeline.Insert(ctx, actorFromContext(c), groupID, moduleID, position)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "module added to timeline", timeline)
}

func (h *RunningModuleHandler) updateModule(c *fiber.Ctx) error {
	groupID, position, err := groupPosition(c)
	if err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "INVALID_PARAMETER", err.Error())
	}

	var payload dto.RunningModuleUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	timeline, err := h.timeline.Update(ctx, actorFromContext(c), groupID, position, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "running module updated", timeline)
}

func (h *RunningModuleHandler) splitModule(c *fiber.Ctx) error {
	groupID, position, err := groupPosition(c)
	if err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "INVALID_PARAMETER", err.Error())
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	timeline, err := h.timeline.Split(ctx, actorFromContext(c), groupID, position)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "running module split", timeline)
}

func (h *RunningModuleHandler) deleteModule(c *fiber.Ctx) error {
	groupID, position, err := groupPosition(c)
	if err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "INVALID_PARAMETER", err.Error())
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	timeline, err := h.timeline.Delete(ctx, actorFromContext(c), groupID, position)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "running module removed", timeline)
}

func (h *RunningModuleHandler) updateNotes(c *fiber.Ctx) error {
	runningID, err := parseUintParam(c, "runningId")
	if err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "INVALID_PARAMETER", err.Error())
	}

	var payload dto.RunningModuleNotesRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	slot, err := h.timeline.UpdateNotes(ctx, actorFromContext(c), runningID, payload.Notes)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "notes updated", slot)
}

func (h *RunningModuleHandler) addTeacher(c *fiber.Ctx) error {
	runningID, userID, err := runningUser(c)
	if err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "INVALID_PARAMETER", err.Error())
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	teachers, err := h.teachers.AddTeacher(ctx, actorFromContext(c), runningID, userID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "teacher assigned", teachers)
}

func (h *RunningModuleHandler) removeTeacher(c *fiber.Ctx) error {
	runningID, userID, err := runningUser(c)
	if err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "INVALID_PARAMETER", err.Error())
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	teachers, err := h.teachers.RemoveTeacher(ctx, actorFromContext(c), runningID, userID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "teacher unassigned", teachers)
}

func (h *RunningModuleHandler) handleError(c *fiber.Ctx, err error) error {
	if details, ok := validationDetails(err); ok {
		return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", details)
	}

	switch {
	case errors.Is(err, service.ErrTimelineRefreshFailed):
		requestLogger(h.logger, c).Warn().Err(err).Str("path", c.Path()).Msg("timeline refresh failed after commit")
		return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "change saved, reload the timeline", nil)
	case errors.Is(err, service.ErrEmptyUpdate):
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "EMPTY_UPDATE", err.Error())
	case errors.Is(err, service.ErrNotFound):
		return utils.SendErrorWithCode(c, fiber.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrInvalidPosition):
		return utils.SendErrorWithCode(c, fiber.StatusUnprocessableEntity, "INVALID_POSITION", err.Error())
	case errors.Is(err, service.ErrSlotTooShort):
		return utils.SendErrorWithCode(c, fiber.StatusUnprocessableEntity, "SLOT_TOO_SHORT", err.Error())
	case errors.Is(err, service.ErrTimelineInvariant):
		requestLogger(h.logger, c).Error().Err(err).Str("path", c.Path()).Msg("timeline invariant violated")
		return utils.SendErrorWithCode(c, fiber.StatusConflict, "TIMELINE_CONFLICT", err.Error())
	case errors.Is(err, service.ErrStoreFailure):
		requestLogger(h.logger, c).Error().Err(err).Str("path", c.Path()).Msg("timeline store unavailable")
		return utils.SendErrorWithCode(c, fiber.StatusServiceUnavailable, "STORE_UNAVAILABLE", "timeline store unavailable")
	default:
		requestLogger(h.logger, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
		return utils.SendErrorWithCode(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func groupPosition(c *fiber.Ctx) (uint, int, error) {
	groupID, err := parseUintParam(c, "groupId")
	if err != nil {
		return 0, 0, err
	}
	position, err := parseIntParam(c, "position")
	if err != nil {
		return 0, 0, err
	}
	return groupID, position, nil
}

func runningUser(c *fiber.Ctx) (uint, uint, error) {
	runningID, err := parseUintParam(c, "runningId")
	if err != nil {
		return 0, 0, err
	}
	userID, err := parseUintParam(c, "userId")
	if err != nil {
		return 0, 0, err
	}
	return runningID, userID, nil
}
