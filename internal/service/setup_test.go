package service

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/hyfer-go-api/internal/database"
	"github.com/noah-isme/hyfer-go-api/internal/models"
	"github.com/noah-isme/hyfer-go-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// seedTimeline creates a group with one slot per duration, each with its own module.
func seedTimeline(t *testing.T, db *gorm.DB, groupName string, durations ...int) (models.Group, []models.RunningModule) {
	t.Helper()

	group := models.Group{GroupName: groupName}
	require.NoError(t, db.Create(&group).Error)

	slots := make([]models.RunningModule, 0, len(durations))
	for index, duration := range durations {
		module := seedModule(t, db, fmt.Sprintf("%s-module-%d", groupName, index), duration)
		slot := models.RunningModule{GroupID: group.ID, ModuleID: module.ID, Position: index, Duration: duration}
		require.NoError(t, db.Omit("Module").Create(&slot).Error)
		slots = append(slots, slot)
	}
	return group, slots
}

func seedModule(t *testing.T, db *gorm.DB, name string, duration int) models.Module {
	t.Helper()

	module := models.Module{ModuleName: name, DisplayName: strings.ToUpper(name), DefaultDuration: duration}
	require.NoError(t, db.Create(&module).Error)
	return module
}

func seedUser(t *testing.T, db *gorm.DB, username, role string) models.User {
	t.Helper()

	user := models.User{Username: username, FullName: username, Email: username + "@example.com", Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func newTestTimelineService(db *gorm.DB, cache *TimelineCache, events *TimelineEvents) TimelineService {
	return NewTimelineService(
		repository.NewRunningModuleRepository(db),
		repository.NewModuleRepository(db),
		cache,
		events,
		validator.New(validator.WithRequiredStructEnabled()),
		testLogger(),
	)
}

func positionsAndModules(slots []models.RunningModule) ([]int, []uint) {
	positions := make([]int, len(slots))
	modules := make([]uint, len(slots))
	for index, slot := range slots {
		positions[index] = slot.Position
		modules[index] = slot.ModuleID
	}
	return positions, modules
}

func groupSlots(t *testing.T, db *gorm.DB, groupID uint) []models.RunningModule {
	t.Helper()

	var slots []models.RunningModule
	require.NoError(t, db.Where("group_id = ?", groupID).Order("position ASC").Find(&slots).Error)
	return slots
}
