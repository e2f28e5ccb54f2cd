package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/hyfer-go-api/internal/models"
)

// HistoryRepository reads weekly attendance and homework records.
type HistoryRepository interface {
	ListByStudent(ctx context.Context, runningID, userID uint) ([]models.StudentHistory, error)
}

type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository constructs the history repository.
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

// ListByStudent returns records in insertion order, which is the order the
// normalizer relies on to break ties between duplicate weeks.
func (r *historyRepository) ListByStudent(ctx context.Context, runningID, userID uint) ([]models.StudentHistory, error) {
	var records []models.StudentHistory
	if err := r.db.WithContext(ctx).
		Where("running_module_id = ? AND user_id = ?", runningID, userID).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
