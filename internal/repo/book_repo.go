package repo

import (
	"context"
	"errors"

	"github.com/libequip/loans/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrBookNotFound is returned when a book is not found
	ErrBookNotFound = errors.New("book not found")

	// ErrBookInUse is returned when deleting a book that still has
	// outstanding loans against it
	ErrBookInUse = errors.New("book has outstanding loans")
)

// BookRepository handles book inventory operations
type BookRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewBookRepository creates a new book repository
func NewBookRepository(database *db.DB, logger *zap.Logger) *BookRepository {
	return &BookRepository{
		db:  database,
		log: logger,
	}
}

// List returns all books, optionally filtered by genre label
func (r *BookRepository) List(ctx context.Context, gender string) ([]*db.Book, error) {
	query := r.db.WithContext(ctx).Model(&db.Book{})
	if gender != "" {
		query = query.Where("gender = ?", gender)
	}

	var books []*db.Book
	if err := query.Order("id").Find(&books).Error; err != nil {
		r.log.Error("Failed to list books", zap.Error(err))
		return nil, err
	}
	return books, nil
}

// Get retrieves a book by ID
func (r *BookRepository) Get(ctx context.Context, id uint) (*db.Book, error) {
	var book db.Book
	err := r.db.WithContext(ctx).First(&book, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		r.log.Error("Failed to get book", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return &book, nil
}

// Create inserts a new book
func (r *BookRepository) Create(ctx context.Context, book *db.Book) error {
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		r.log.Error("Failed to create book", zap.String("name", book.Name), zap.Error(err))
		return err
	}
	r.log.Info("Book created", zap.Uint("id", book.ID), zap.String("name", book.Name))
	return nil
}

// Update applies the given field updates to a book and returns the
// updated row
func (r *BookRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (*db.Book, error) {
	result := r.db.WithContext(ctx).Model(&db.Book{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		r.log.Error("Failed to update book", zap.Uint("id", id), zap.Error(result.Error))
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrBookNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes a book. Books with outstanding loans cannot be deleted.
func (r *BookRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var outstanding int64
		if err := tx.Model(&db.Loan{}).
			Where("book_id = ? AND returned = ?", id, false).
			Count(&outstanding).Error; err != nil {
			return err
		}
		if outstanding > 0 {
			return ErrBookInUse
		}

		result := tx.Delete(&db.Book{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrBookNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrBookNotFound) || errors.Is(err, ErrBookInUse) {
			return err
		}
		r.log.Error("Failed to delete book", zap.Uint("id", id), zap.Error(err))
		return err
	}

	r.log.Info("Book deleted", zap.Uint("id", id))
	return nil
}

// ReserveCopy atomically takes one copy off the shelf, guarded so the
// available quantity never goes negative. Must run inside the caller's
// transaction.
func (r *BookRepository) ReserveCopy(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	result := tx.WithContext(ctx).Model(&db.Book{}).
		Where("id = ? AND quantity >= 1", id).
		Update("quantity", gorm.Expr("quantity - 1"))
	if result.Error != nil {
		r.log.Error("Failed to reserve book copy", zap.Uint("id", id), zap.Error(result.Error))
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseCopy atomically puts one copy back on the shelf. Must run inside
// the caller's transaction.
func (r *BookRepository) ReleaseCopy(ctx context.Context, tx *gorm.DB, id uint) error {
	result := tx.WithContext(ctx).Model(&db.Book{}).
		Where("id = ?", id).
		Update("quantity", gorm.Expr("quantity + 1"))
	if result.Error != nil {
		r.log.Error("Failed to release book copy", zap.Uint("id", id), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}
