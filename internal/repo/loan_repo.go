package repo

import (
	"context"
	"errors"

	"github.com/libequip/loans/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrLoanNotFound is returned when a loan is not found
	ErrLoanNotFound = errors.New("loan not found")

	// ErrLoanOutstanding is returned when deleting a loan that still
	// holds a book copy
	ErrLoanOutstanding = errors.New("loan is still outstanding")
)

// LoanRepository handles the book loan ledger
type LoanRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(database *db.DB, logger *zap.Logger) *LoanRepository {
	return &LoanRepository{
		db:  database,
		log: logger,
	}
}

// List returns all loans, optionally filtered by returned state
func (r *LoanRepository) List(ctx context.Context, returned *bool) ([]*db.Loan, error) {
	query := r.db.WithContext(ctx).Model(&db.Loan{})
	if returned != nil {
		query = query.Where("returned = ?", *returned)
	}

	var loans []*db.Loan
	if err := query.Order("id").Find(&loans).Error; err != nil {
		r.log.Error("Failed to list loans", zap.Error(err))
		return nil, err
	}
	return loans, nil
}

// Get retrieves a loan by ID
func (r *LoanRepository) Get(ctx context.Context, id uint) (*db.Loan, error) {
	var loan db.Loan
	err := r.db.WithContext(ctx).First(&loan, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		r.log.Error("Failed to get loan", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return &loan, nil
}

// CreateTx inserts a new loan inside the caller's transaction, so the
// insert commits or rolls back together with the inventory decrement.
func (r *LoanRepository) CreateTx(ctx context.Context, tx *gorm.DB, loan *db.Loan) error {
	if err := tx.WithContext(ctx).Create(loan).Error; err != nil {
		r.log.Error("Failed to create loan", zap.Uint("book_id", loan.BookID), zap.Error(err))
		return err
	}
	return nil
}

// MarkReturned flips the loan to returned. One-way transition; a second
// attempt matches zero rows and reports false.
func (r *LoanRepository) MarkReturned(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	result := tx.WithContext(ctx).Model(&db.Loan{}).
		Where("id = ? AND returned = ?", id, false).
		Update("returned", true)
	if result.Error != nil {
		r.log.Error("Failed to mark loan returned", zap.Uint("id", id), zap.Error(result.Error))
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Update applies non-accounting field updates and returns the updated row
func (r *LoanRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (*db.Loan, error) {
	result := r.db.WithContext(ctx).Model(&db.Loan{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		r.log.Error("Failed to update loan", zap.Uint("id", id), zap.Error(result.Error))
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrLoanNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes a returned loan. Outstanding loans still hold a copy
// and must be returned first.
func (r *LoanRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND returned = ?", id, true).
		Delete(&db.Loan{})
	if result.Error != nil {
		r.log.Error("Failed to delete loan", zap.Uint("id", id), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrLoanOutstanding
	}

	r.log.Info("Loan deleted", zap.Uint("id", id))
	return nil
}
