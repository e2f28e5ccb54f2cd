package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/hyfer-go-api/internal/models"
)

// RunningModuleRepository persists running module slots.
type RunningModuleRepository interface {
	Timeline(ctx context.Context) ([]models.RunningModule, error)
	ListByGroup(ctx context.Context, groupID uint) ([]models.RunningModule, error)
	GetByID(ctx context.Context, id uint) (models.RunningModule, error)
	WithinGroup(ctx context.Context, groupID uint, fn func(tx GroupTimeline) error) error
}

// GroupTimeline is the transactional view of a single group's slots. It is
// only valid inside the callback passed to WithinGroup.
type GroupTimeline interface {
	Slots() ([]models.RunningModule, error)
	Shift(from, delta int) error
	Create(slot *models.RunningModule) error
	Update(id uint, updates map[string]interface{}) error
	Delete(id uint) error
	CopyTeachers(fromID, toID uint) error
	RecordChange(change *models.TimelineChange) error
}

type runningModuleRepository struct {
	db *gorm.DB
}

// NewRunningModuleRepository instantiates a GORM-backed repository.
func NewRunningModuleRepository(db *gorm.DB) RunningModuleRepository {
	return &runningModuleRepository{db: db}
}

func (r *runningModuleRepository) Timeline(ctx context.Context) ([]models.RunningModule, error) {
	var slots []models.RunningModule
	if err := r.db.WithContext(ctx).
		Preload("Module").
		Order("group_id ASC").
		Order("position ASC").
		Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *runningModuleRepository) ListByGroup(ctx context.Context, groupID uint) ([]models.RunningModule, error) {
	var slots []models.RunningModule
	if err := r.db.WithContext(ctx).
		Preload("Module").
		Where("group_id = ?", groupID).
		Order("position ASC").
		Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *runningModuleRepository) GetByID(ctx context.Context, id uint) (models.RunningModule, error) {
	var slot models.RunningModule
	if err := r.db.WithContext(ctx).Preload("Module").First(&slot, id).Error; err != nil {
		return models.RunningModule{}, err
	}
	return slot, nil
}

// WithinGroup runs fn in a transaction holding a row lock on the group, so
// structural edits of one group never interleave. It returns
// gorm.ErrRecordNotFound when the group does not exist.
func (r *runningModuleRepository) WithinGroup(ctx context.Context, groupID uint, fn func(tx GroupTimeline) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", groupID).
			First(&group).Error; err != nil {
			return err
		}

		return fn(&groupTimeline{tx: tx, groupID: groupID})
	})
}

type groupTimeline struct {
	tx      *gorm.DB
	groupID uint
}

func (g *groupTimeline) Slots() ([]models.RunningModule, error) {
	var slots []models.RunningModule
	if err := g.tx.Where("group_id = ?", g.groupID).Order("position ASC").Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

// Shift moves every slot at or after from by delta. The range is parked at
// negative positions first so the (group_id, position) unique index never
// observes two rows on the same position mid-statement.
func (g *groupTimeline) Shift(from, delta int) error {
	if delta == 0 {
		return nil
	}

	park := g.tx.Model(&models.RunningModule{}).
		Where("group_id = ? AND position >= ?", g.groupID, from).
		UpdateColumn("position", gorm.Expr("-(position + ?) - 1", delta))
	if park.Error != nil {
		return park.Error
	}
	if park.RowsAffected == 0 {
		return nil
	}

	return g.tx.Model(&models.RunningModule{}).
		Where("group_id = ? AND position < 0", g.groupID).
		UpdateColumn("position", gorm.Expr("-position - 1")).
		Error
}

func (g *groupTimeline) Create(slot *models.RunningModule) error {
	slot.GroupID = g.groupID
	return g.tx.Omit(clause.Associations).Create(slot).Error
}

func (g *groupTimeline) Update(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	result := g.tx.Model(&models.RunningModule{}).
		Where("id = ? AND group_id = ?", id, g.groupID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (g *groupTimeline) Delete(id uint) error {
	if err := g.tx.Where("running_module_id = ?", id).Delete(&models.RunningModuleTeacher{}).Error; err != nil {
		return err
	}
	if err := g.tx.Where("running_module_id = ?", id).Delete(&models.StudentHistory{}).Error; err != nil {
		return err
	}

	result := g.tx.Where("group_id = ?", g.groupID).Delete(&models.RunningModule{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (g *groupTimeline) CopyTeachers(fromID, toID uint) error {
	var assignments []models.RunningModuleTeacher
	if err := g.tx.Where("running_module_id = ?", fromID).Find(&assignments).Error; err != nil {
		return err
	}
	if len(assignments) == 0 {
		return nil
	}

	copies := make([]models.RunningModuleTeacher, 0, len(assignments))
	for _, assignment := range assignments {
		copies = append(copies, models.RunningModuleTeacher{RunningModuleID: toID, UserID: assignment.UserID})
	}

	return g.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&copies).Error
}

func (g *groupTimeline) RecordChange(change *models.TimelineChange) error {
	change.GroupID = g.groupID
	return g.tx.Create(change).Error
}
