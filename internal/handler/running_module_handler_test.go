package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/hyfer-go-api/internal/config"
	"github.com/noah-isme/hyfer-go-api/internal/database"
	"github.com/noah-isme/hyfer-go-api/internal/dto"
	"github.com/noah-isme/hyfer-go-api/internal/handler"
	"github.com/noah-isme/hyfer-go-api/internal/models"
	"github.com/noah-isme/hyfer-go-api/internal/repository"
	"github.com/noah-isme/hyfer-go-api/internal/router"
	"github.com/noah-isme/hyfer-go-api/internal/service"
)

type timelineFixture struct {
	group   models.Group
	modules []models.Module
	slots   []models.RunningModule
	teacher models.User
	student models.User
}

type envelope[T any] struct {
	Success bool              `json:"success"`
	Data    T                 `json:"data"`
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details"`
}

// identityFromHeaders stands in for JWT auth; tests choose the caller per request.
func identityFromHeaders(c *fiber.Ctx) error {
	if raw := c.Get("X-Test-User"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err == nil {
			c.Locals("user_id", uint(id))
		}
	}
	if role := c.Get("X-Test-Role"); role != "" {
		c.Locals("user_role", role)
	}
	return c.Next()
}

// unreadableTimeline commits mutations normally but fails every full timeline read.
type unreadableTimeline struct {
	repository.RunningModuleRepository
}

func (unreadableTimeline) Timeline(context.Context) ([]models.RunningModule, error) {
	return nil, errors.New("connection reset")
}

func setupRunningModuleApp(t *testing.T) (*fiber.App, *gorm.DB, timelineFixture) {
	t.Helper()
	return setupRunningModuleAppWithRepo(t, nil)
}

func setupRunningModuleAppWithRepo(t *testing.T, wrap func(repository.RunningModuleRepository) repository.RunningModuleRepository) (*fiber.App, *gorm.DB, timelineFixture) {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	fixture := seedFixture(t, db)

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	runningModuleRepo := repository.NewRunningModuleRepository(db)
	if wrap != nil {
		runningModuleRepo = wrap(runningModuleRepo)
	}
	moduleRepo := repository.NewModuleRepository(db)
	userRepo := repository.NewUserRepository(db)
	events := service.NewTimelineEvents(nil, "", nil, logger)

	timelineService := service.NewTimelineService(runningModuleRepo, moduleRepo, nil, events, validate, logger)
	detailService := service.NewRunDetailService(runningModuleRepo, repository.NewGroupRepository(db), moduleRepo, userRepo, repository.NewHistoryRepository(db), service.RunDetailOptions{IncludeHistory: true}, logger)
	teacherService := service.NewTeacherAssignmentService(runningModuleRepo, userRepo, events, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		RunningModuleHandler:  handler.NewRunningModuleHandler(timelineService, detailService, teacherService, validate, 5*time.Second, logger),
		TimelineStreamHandler: handler.NewTimelineStreamHandler(events, logger),
		JWTMiddleware:         identityFromHeaders,
	})

	return app, db, fixture
}

func seedFixture(t *testing.T, db *gorm.DB) timelineFixture {
	t.Helper()

	group := models.Group{GroupName: "class-20", StartingDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, db.Create(&group).Error)

	modules := []models.Module{
		{ModuleName: "html-css", DisplayName: "HTML & CSS", DefaultDuration: 3, Color: "#e34c26"},
		{ModuleName: "javascript", DisplayName: "JavaScript", DefaultDuration: 4, Color: "#f0db4f"},
		{ModuleName: "react", DisplayName: "React", DefaultDuration: 2, Color: "#61dafb"},
	}
	require.NoError(t, db.Create(&modules).Error)

	slots := []models.RunningModule{
		{GroupID: group.ID, ModuleID: modules[0].ID, Position: 0, Duration: 3},
		{GroupID: group.ID, ModuleID: modules[1].ID, Position: 1, Duration: 4, Notes: "arrays first"},
	}
	require.NoError(t, db.Omit("Module").Create(&slots).Error)

	teacher := models.User{Username: "teacher", FullName: "Tess Teacher", Role: models.UserRoleTeacher}
	student := models.User{Username: "student", FullName: "Stu Dent", Role: models.UserRoleStudent}
	require.NoError(t, db.Create(&teacher).Error)
	require.NoError(t, db.Create(&student).Error)
	require.NoError(t, db.Create(&models.GroupStudent{GroupID: group.ID, UserID: student.ID}).Error)
	require.NoError(t, db.Create(&models.StudentHistory{RunningModuleID: slots[1].ID, UserID: student.ID, WeekNum: 2, Attendance: 1, Homework: 1}).Error)

	return timelineFixture{group: group, modules: modules, slots: slots, teacher: teacher, student: student}
}

func doRequest(t *testing.T, app *fiber.App, method, path, role string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("X-Test-User", "1")
		req.Header.Set("X-Test-Role", role)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func TestRunningModuleHandlerAddModule(t *testing.T) {
	app, db, fixture := setupRunningModuleApp(t)

	path := fmt.Sprintf("/api/v1/running-modules/add/%d/%d/1", fixture.modules[2].ID, fixture.group.ID)
	resp := doRequest(t, app, http.MethodPatch, path, models.UserRoleTeacher, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body envelope[[]dto.RunningModuleResponse]
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Len(t, body.Data, 3)
	require.Equal(t, fixture.modules[2].ID, body.Data[1].ModuleID)
	require.Equal(t, 2, body.Data[1].Duration)
	require.Equal(t, "React", body.Data[1].DisplayName)
	require.Equal(t, fixture.slots[1].ID, body.Data[2].ID)
	require.Equal(t, 2, body.Data[2].Position)

	var changes int64
	require.NoError(t, db.Model(&models.TimelineChange{}).Where("operation = ?", models.TimelineOpInsert).Count(&changes).Error)
	require.Equal(t, int64(1), changes)
}

func TestRunningModuleHandlerCommittedChangeWithFailedRefresh(t *testing.T) {
	app, db, fixture := setupRunningModuleAppWithRepo(t, func(repo repository.RunningModuleRepository) repository.RunningModuleRepository {
		return unreadableTimeline{repo}
	})

	path := fmt.Sprintf("/api/v1/running-modules/add/%d/%d/0", fixture.modules[2].ID, fixture.group.ID)
	resp := doRequest(t, app, http.MethodPatch, path, models.UserRoleTeacher, nil)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var body envelope[[]dto.RunningModuleResponse]
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Empty(t, body.Data)

	var count int64
	require.NoError(t, db.Model(&models.RunningModule{}).Where("group_id = ?", fixture.group.ID).Count(&count).Error)
	require.Equal(t, int64(3), count)
}

func TestRunningModuleHandlerErrorMapping(t *testing.T) {
	app, _, fixture := setupRunningModuleApp(t)
	groupID := fixture.group.ID

	cases := []struct {
		name   string
		method string
		path   string
		role   string
		body   interface{}
		status int
		code   string
	}{
		{"position past end", http.MethodPatch, fmt.Sprintf("/api/v1/running-modules/add/%d/%d/3", fixture.modules[0].ID, groupID), models.UserRoleTeacher, nil, fiber.StatusUnprocessableEntity, "INVALID_POSITION"},
		{"missing module", http.MethodPatch, fmt.Sprintf("/api/v1/running-modules/add/999/%d/0", groupID), models.UserRoleTeacher, nil, fiber.StatusNotFound, "NOT_FOUND"},
		{"missing group", http.MethodPatch, fmt.Sprintf("/api/v1/running-modules/add/%d/999/0", fixture.modules[0].ID), models.UserRoleTeacher, nil, fiber.StatusNotFound, "NOT_FOUND"},
		{"delete empty position", http.MethodDelete, fmt.Sprintf("/api/v1/running-modules/%d/5", groupID), models.UserRoleTeacher, nil, fiber.StatusNotFound, "NOT_FOUND"},
		{"bad group id", http.MethodDelete, "/api/v1/running-modules/abc/0", models.UserRoleTeacher, nil, fiber.StatusBadRequest, "INVALID_PARAMETER"},
		{"empty patch", http.MethodPatch, fmt.Sprintf("/api/v1/running-modules/update/%d/0", groupID), models.UserRoleTeacher, map[string]interface{}{}, fiber.StatusBadRequest, "EMPTY_UPDATE"},
		{"invalid duration", http.MethodPatch, fmt.Sprintf("/api/v1/running-modules/update/%d/0", groupID), models.UserRoleTeacher, map[string]interface{}{"duration": 0}, fiber.StatusBadRequest, "VALIDATION_ERROR"},
		{"student cannot split", http.MethodPatch, fmt.Sprintf("/api/v1/running-modules/split/%d/1", groupID), models.UserRoleStudent, nil, fiber.StatusForbidden, "FORBIDDEN"},
		{"anonymous timeline", http.MethodGet, "/api/v1/running-modules/timeline", "", nil, fiber.StatusUnauthorized, "UNAUTHORIZED"},
		{"student cannot list group", http.MethodGet, fmt.Sprintf("/api/v1/running-modules/%d", groupID), models.UserRoleStudent, nil, fiber.StatusForbidden, "FORBIDDEN"},
		{"teacher for student", http.MethodPost, fmt.Sprintf("/api/v1/running-modules/teacher/%d/%d", fixture.slots[0].ID, fixture.student.ID), models.UserRoleTeacher, nil, fiber.StatusNotFound, "NOT_FOUND"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, app, tc.method, tc.path, tc.role, tc.body)
			require.Equal(t, tc.status, resp.StatusCode)

			var body envelope[json.RawMessage]
			decodeResponse(t, resp, &body)
			require.False(t, body.Success)
			require.Equal(t, tc.code, body.Code)
		})
	}
}

func TestRunningModuleHandlerSplitTooShort(t *testing.T) {
	app, db, fixture := setupRunningModuleApp(t)
	require.NoError(t, db.Model(&models.RunningModule{}).Where("id = ?", fixture.slots[0].ID).Update("duration", 1).Error)

	resp := doRequest(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/running-modules/split/%d/0", fixture.group.ID), models.UserRoleTeacher, nil)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp = doRequest(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/running-modules/split/%d/1", fixture.group.ID), models.UserRoleTeacher, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body envelope[[]dto.RunningModuleResponse]
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data, 3)
	require.Equal(t, 2, body.Data[1].Duration)
	require.Equal(t, 2, body.Data[2].Duration)
	require.Equal(t, "arrays first", body.Data[2].Notes)
}

func TestRunningModuleHandlerUpdateAndDelete(t *testing.T) {
	app, _, fixture := setupRunningModuleApp(t)
	groupID := fixture.group.ID

	resp := doRequest(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/running-modules/update/%d/1", groupID), models.UserRoleTeacher, map[string]interface{}{"duration": 6})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var updated envelope[[]dto.RunningModuleResponse]
	decodeResponse(t, resp, &updated)
	require.Equal(t, 6, updated.Data[1].Duration)
	require.Equal(t, "arrays first", updated.Data[1].Notes)

	resp = doRequest(t, app, http.MethodDelete, fmt.Sprintf("/api/v1/running-modules/%d/0", groupID), models.UserRoleTeacher, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, fmt.Sprintf("/api/v1/running-modules/%d", groupID), models.UserRoleTeacher, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var remaining envelope[[]dto.RunningModuleResponse]
	decodeResponse(t, resp, &remaining)
	require.Len(t, remaining.Data, 1)
	require.Equal(t, fixture.slots[1].ID, remaining.Data[0].ID)
	require.Equal(t, 0, remaining.Data[0].Position)
}

func TestRunningModuleHandlerTimelineForStudent(t *testing.T) {
	app, _, _ := setupRunningModuleApp(t)

	resp := doRequest(t, app, http.MethodGet, "/api/v1/running-modules/timeline", models.UserRoleStudent, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body envelope[[]dto.RunningModuleResponse]
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data, 2)
	require.Equal(t, "html-css", body.Data[0].ModuleName)
}

func TestRunningModuleHandlerDetails(t *testing.T) {
	app, _, fixture := setupRunningModuleApp(t)

	resp := doRequest(t, app, http.MethodGet, fmt.Sprintf("/api/v1/running-modules/details/%d", fixture.slots[1].ID), models.UserRoleStudent, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body envelope[dto.RunDetailResponse]
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, fixture.slots[1].ID, body.Data.RunningModule.ID)
	require.Equal(t, "javascript", body.Data.Module.ModuleName)
	require.Equal(t, "class-20", body.Data.Group.GroupName)
	require.Len(t, body.Data.Students, 1)
	require.NotNil(t, body.Data.Students[0].History)
	require.Equal(t, []int{0, 0, 1, 0}, body.Data.Students[0].History.Attendance)
	require.Empty(t, body.Data.Teachers)

	resp = doRequest(t, app, http.MethodGet, "/api/v1/running-modules/details/999", models.UserRoleTeacher, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRunningModuleHandlerNotesAndTeachers(t *testing.T) {
	app, _, fixture := setupRunningModuleApp(t)
	runningID := fixture.slots[0].ID

	resp := doRequest(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/running-modules/notes/%d", runningID), models.UserRoleTeacher, map[string]string{
		"notes": "# Week 1\n<script>alert('x')</script>",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var notes envelope[dto.RunningModuleResponse]
	decodeResponse(t, resp, &notes)
	require.Contains(t, notes.Data.Notes, "# Week 1")
	require.NotContains(t, notes.Data.Notes, "<script>")

	teacherPath := fmt.Sprintf("/api/v1/running-modules/teacher/%d/%d", runningID, fixture.teacher.ID)
	for i := 0; i < 2; i++ {
		resp = doRequest(t, app, http.MethodPost, teacherPath, models.UserRoleTeacher, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var teachers envelope[[]dto.UserResponse]
		decodeResponse(t, resp, &teachers)
		require.Len(t, teachers.Data, 1)
		require.Equal(t, fixture.teacher.ID, teachers.Data[0].ID)
	}

	resp = doRequest(t, app, http.MethodDelete, teacherPath, models.UserRoleTeacher, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var teachers envelope[[]dto.UserResponse]
	decodeResponse(t, resp, &teachers)
	require.Empty(t, teachers.Data)
}

func TestTimelineStreamRequiresUpgrade(t *testing.T) {
	app, _, _ := setupRunningModuleApp(t)

	resp := doRequest(t, app, http.MethodGet, "/api/v1/running-modules/ws", models.UserRoleStudent, nil)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/api/v1/running-modules/ws", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
