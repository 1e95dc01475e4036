package repo

import (
	"context"
	"errors"

	"github.com/libequip/loans/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrScheduleNotFound is returned when a schedule is not found
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrScheduleOutstanding is returned when deleting a schedule that
	// still holds equipment units
	ErrScheduleOutstanding = errors.New("schedule is still outstanding")
)

// ScheduleRepository handles the equipment reservation ledger
type ScheduleRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(database *db.DB, logger *zap.Logger) *ScheduleRepository {
	return &ScheduleRepository{
		db:  database,
		log: logger,
	}
}

// List returns all schedules, optionally filtered by returned state
func (r *ScheduleRepository) List(ctx context.Context, returned *bool) ([]*db.Schedule, error) {
	query := r.db.WithContext(ctx).Model(&db.Schedule{})
	if returned != nil {
		query = query.Where("returned = ?", *returned)
	}

	var schedules []*db.Schedule
	if err := query.Order("id").Find(&schedules).Error; err != nil {
		r.log.Error("Failed to list schedules", zap.Error(err))
		return nil, err
	}
	return schedules, nil
}

// Get retrieves a schedule by ID
func (r *ScheduleRepository) Get(ctx context.Context, id uint) (*db.Schedule, error) {
	var schedule db.Schedule
	err := r.db.WithContext(ctx).First(&schedule, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		r.log.Error("Failed to get schedule", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return &schedule, nil
}

// CreateTx inserts a new schedule inside the caller's transaction, so the
// insert commits or rolls back together with the inventory decrement.
func (r *ScheduleRepository) CreateTx(ctx context.Context, tx *gorm.DB, schedule *db.Schedule) error {
	if err := tx.WithContext(ctx).Create(schedule).Error; err != nil {
		r.log.Error("Failed to create schedule", zap.Uint("equipment_id", schedule.EquipmentID), zap.Error(err))
		return err
	}
	return nil
}

// MarkReturned flips the schedule to returned. The transition is one-way:
// the conditional update only matches outstanding rows, so a concurrent
// second return attempt affects zero rows and reports false.
func (r *ScheduleRepository) MarkReturned(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	result := tx.WithContext(ctx).Model(&db.Schedule{}).
		Where("id = ? AND returned = ?", id, false).
		Update("returned", true)
	if result.Error != nil {
		r.log.Error("Failed to mark schedule returned", zap.Uint("id", id), zap.Error(result.Error))
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Update applies non-accounting field updates and returns the updated row
func (r *ScheduleRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (*db.Schedule, error) {
	result := r.db.WithContext(ctx).Model(&db.Schedule{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		r.log.Error("Failed to update schedule", zap.Uint("id", id), zap.Error(result.Error))
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrScheduleNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes a returned schedule. Outstanding schedules still hold
// inventory and must be returned first.
func (r *ScheduleRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND returned = ?", id, true).
		Delete(&db.Schedule{})
	if result.Error != nil {
		r.log.Error("Failed to delete schedule", zap.Uint("id", id), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish a missing row from an outstanding one
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrScheduleOutstanding
	}

	r.log.Info("Schedule deleted", zap.Uint("id", id))
	return nil
}
