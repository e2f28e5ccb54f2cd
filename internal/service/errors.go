package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound is the umbrella for every missing-entity error below.
var ErrNotFound = errors.New("not found")

var (
	// ErrRunningModuleNotFound indicates no slot matches the requested id or position.
	ErrRunningModuleNotFound = fmt.Errorf("running module %w", ErrNotFound)
	// ErrGroupNotFound indicates the referenced group does not exist.
	ErrGroupNotFound = fmt.Errorf("group %w", ErrNotFound)
	// ErrModuleNotFound indicates the referenced catalog module does not exist.
	ErrModuleNotFound = fmt.Errorf("module %w", ErrNotFound)
	// ErrTeacherNotFound indicates the user does not exist or is not a teacher.
	ErrTeacherNotFound = fmt.Errorf("teacher %w", ErrNotFound)
)

var (
	// ErrInvalidPosition indicates an insertion index outside [0, count].
	ErrInvalidPosition = errors.New("invalid timeline position")
	// ErrSlotTooShort indicates a one-week slot was asked to split.
	ErrSlotTooShort = errors.New("running module is too short to split")
	// ErrEmptyUpdate indicates an update patch without any field set.
	ErrEmptyUpdate = errors.New("update must change duration or notes")
	// ErrTimelineInvariant indicates the store holds duplicate or missing positions.
	ErrTimelineInvariant = errors.New("timeline positions are not contiguous")
	// ErrStoreFailure wraps persistence errors that are not a missing record.
	ErrStoreFailure = errors.New("timeline store failure")
	// ErrTimelineRefreshFailed indicates the change was committed but the
	// timeline could not be read back afterwards. The change must not be retried.
	ErrTimelineRefreshFailed = errors.New("timeline change committed but refresh failed")
)

func storeError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStoreFailure, err)
}

// lookupError maps a single-row lookup failure to a domain error.
func lookupError(err, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return storeError(err)
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidPosition) ||
		errors.Is(err, ErrSlotTooShort) ||
		errors.Is(err, ErrEmptyUpdate) ||
		errors.Is(err, ErrTimelineInvariant) ||
		errors.Is(err, ErrStoreFailure)
}
