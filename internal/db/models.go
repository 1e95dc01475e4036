package db

import (
	"time"
)

// Equipment is a reservable inventory item. Quantity is the number of
// units currently available, not the total the institution owns.
type Equipment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null;index:idx_equipments_name" json:"name"`
	Type      string    `gorm:"type:varchar(50);not null;index:idx_equipments_type" json:"type"`
	Quantity  int32     `gorm:"not null;default:0" json:"quantity"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for Equipment model
func (Equipment) TableName() string {
	return "equipments"
}

// Book is a lendable title. Number is the catalog number, Gender the
// genre label used by the front ends for filtering.
type Book struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null;index:idx_books_name" json:"name"`
	Number    int32     `gorm:"not null" json:"number"`
	Gender    string    `gorm:"type:varchar(50);not null;index:idx_books_gender" json:"gender"`
	Author    string    `gorm:"type:varchar(100);not null;index:idx_books_author" json:"author"`
	Quantity  int32     `gorm:"not null;default:0" json:"quantity"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for Book model
func (Book) TableName() string {
	return "books"
}

// Schedule reserves Quantity units of an equipment item until returned.
type Schedule struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Quantity    int32     `gorm:"not null" json:"quantity"`
	StartDate   time.Time `gorm:"not null" json:"startDate"`
	ReturnDate  time.Time `gorm:"not null" json:"returnDate"`
	WeekDay     string    `gorm:"type:varchar(20)" json:"weekDay,omitempty"`
	Type        string    `gorm:"type:varchar(50)" json:"type,omitempty"`
	Returned    bool      `gorm:"not null;default:false;index:idx_schedules_returned" json:"returned"`
	EquipmentID uint      `gorm:"not null;index:idx_schedules_equipment" json:"equipmentId"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for Schedule model
func (Schedule) TableName() string {
	return "schedules"
}

// Loan records a single copy of a book lent out until returned.
// Loans always consume exactly one unit of the book's quantity.
type Loan struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	SeriesCourse string    `gorm:"type:varchar(50)" json:"seriesCourse,omitempty"`
	StartDate    time.Time `gorm:"not null" json:"startDate"`
	ReturnDate   time.Time `gorm:"not null" json:"returnDate"`
	Returned     bool      `gorm:"not null;default:false;index:idx_loans_returned" json:"returned"`
	BookID       uint      `gorm:"not null;index:idx_loans_book" json:"bookId"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for Loan model
func (Loan) TableName() string {
	return "loans"
}
