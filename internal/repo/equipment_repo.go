package repo

import (
	"context"
	"errors"

	"github.com/libequip/loans/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrEquipmentNotFound is returned when an equipment item is not found
	ErrEquipmentNotFound = errors.New("equipment not found")

	// ErrEquipmentInUse is returned when deleting equipment that still has
	// outstanding schedules holding its units
	ErrEquipmentInUse = errors.New("equipment has outstanding schedules")
)

// EquipmentRepository handles equipment inventory operations
type EquipmentRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewEquipmentRepository creates a new equipment repository
func NewEquipmentRepository(database *db.DB, logger *zap.Logger) *EquipmentRepository {
	return &EquipmentRepository{
		db:  database,
		log: logger,
	}
}

// List returns all equipment items
func (r *EquipmentRepository) List(ctx context.Context) ([]*db.Equipment, error) {
	var items []*db.Equipment
	if err := r.db.WithContext(ctx).Order("id").Find(&items).Error; err != nil {
		r.log.Error("Failed to list equipments", zap.Error(err))
		return nil, err
	}
	return items, nil
}

// Get retrieves an equipment item by ID
func (r *EquipmentRepository) Get(ctx context.Context, id uint) (*db.Equipment, error) {
	var item db.Equipment
	err := r.db.WithContext(ctx).First(&item, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEquipmentNotFound
		}
		r.log.Error("Failed to get equipment", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return &item, nil
}

// Create inserts a new equipment item
func (r *EquipmentRepository) Create(ctx context.Context, item *db.Equipment) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		r.log.Error("Failed to create equipment", zap.String("name", item.Name), zap.Error(err))
		return err
	}
	r.log.Info("Equipment created", zap.Uint("id", item.ID), zap.String("name", item.Name))
	return nil
}

// Update applies the given field updates to an equipment item and returns
// the updated row. Quantity edits here are administrative restocks; unit
// accounting for reservations goes through ReserveQuantity/ReleaseQuantity.
func (r *EquipmentRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (*db.Equipment, error) {
	result := r.db.WithContext(ctx).Model(&db.Equipment{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		r.log.Error("Failed to update equipment", zap.Uint("id", id), zap.Error(result.Error))
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrEquipmentNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes an equipment item. Items with outstanding schedules
// cannot be deleted; their units are still on loan.
func (r *EquipmentRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var outstanding int64
		if err := tx.Model(&db.Schedule{}).
			Where("equipment_id = ? AND returned = ?", id, false).
			Count(&outstanding).Error; err != nil {
			return err
		}
		if outstanding > 0 {
			return ErrEquipmentInUse
		}

		result := tx.Delete(&db.Equipment{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrEquipmentNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEquipmentNotFound) || errors.Is(err, ErrEquipmentInUse) {
			return err
		}
		r.log.Error("Failed to delete equipment", zap.Uint("id", id), zap.Error(err))
		return err
	}

	r.log.Info("Equipment deleted", zap.Uint("id", id))
	return nil
}

// ReserveQuantity atomically decrements the item's available quantity,
// guarded so it never goes negative. Returns false when the item does not
// hold enough units; the caller decides between not-found and shortfall.
// Must run inside the caller's transaction.
func (r *EquipmentRepository) ReserveQuantity(ctx context.Context, tx *gorm.DB, id uint, quantity int32) (bool, error) {
	result := tx.WithContext(ctx).Model(&db.Equipment{}).
		Where("id = ? AND quantity >= ?", id, quantity).
		Update("quantity", gorm.Expr("quantity - ?", quantity))
	if result.Error != nil {
		r.log.Error("Failed to reserve equipment quantity", zap.Uint("id", id), zap.Error(result.Error))
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseQuantity atomically returns units to the item's available
// quantity. Must run inside the caller's transaction.
func (r *EquipmentRepository) ReleaseQuantity(ctx context.Context, tx *gorm.DB, id uint, quantity int32) error {
	result := tx.WithContext(ctx).Model(&db.Equipment{}).
		Where("id = ?", id).
		Update("quantity", gorm.Expr("quantity + ?", quantity))
	if result.Error != nil {
		r.log.Error("Failed to release equipment quantity", zap.Uint("id", id), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEquipmentNotFound
	}
	return nil
}
