package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/libequip/loans/internal/db"
	"github.com/libequip/loans/internal/metrics"
	"github.com/libequip/loans/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventPublisher publishes reservation lifecycle events. Implemented by
// events.Publisher; tests substitute a stub.
type EventPublisher interface {
	PublishScheduleCreated(ctx context.Context, schedule *db.Schedule) error
	PublishScheduleReturned(ctx context.Context, schedule *db.Schedule) error
	PublishLoanCreated(ctx context.Context, loan *db.Loan) error
	PublishLoanReturned(ctx context.Context, loan *db.Loan) error
}

// Service orchestrates reservation accounting: admission, the paired
// ledger-insert/inventory-decrement, and the inverse on return. It is
// the only writer of inventory quantities outside administrative
// restocks.
type Service struct {
	db        *db.DB
	equipment *repo.EquipmentRepository
	books     *repo.BookRepository
	schedules *repo.ScheduleRepository
	loans     *repo.LoanRepository
	publisher EventPublisher
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// NewService creates a new reservation service
func NewService(
	database *db.DB,
	equipment *repo.EquipmentRepository,
	books *repo.BookRepository,
	schedules *repo.ScheduleRepository,
	loans *repo.LoanRepository,
	publisher EventPublisher,
	m *metrics.Metrics,
	log *zap.Logger,
) *Service {
	return &Service{
		db:        database,
		equipment: equipment,
		books:     books,
		schedules: schedules,
		loans:     loans,
		publisher: publisher,
		metrics:   m,
		log:       log,
	}
}

// ScheduleInput carries the fields needed to reserve equipment
type ScheduleInput struct {
	Name        string
	Quantity    int32
	StartDate   time.Time
	ReturnDate  time.Time
	WeekDay     string
	Type        string
	EquipmentID uint
}

func (in *ScheduleInput) validate() error {
	if in.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if err := validateQuantity(in.Quantity); err != nil {
		return err
	}
	if in.EquipmentID == 0 {
		return &ValidationError{Field: "equipmentId", Reason: "is required"}
	}
	return validateDates(in.StartDate, in.ReturnDate)
}

// LoanInput carries the fields needed to lend a book. Loans always take
// exactly one copy.
type LoanInput struct {
	Name         string
	SeriesCourse string
	StartDate    time.Time
	ReturnDate   time.Time
	BookID       uint
}

func (in *LoanInput) validate() error {
	if in.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if in.BookID == 0 {
		return &ValidationError{Field: "bookId", Reason: "is required"}
	}
	return validateDates(in.StartDate, in.ReturnDate)
}

func validateDates(start, ret time.Time) error {
	if start.IsZero() {
		return &ValidationError{Field: "startDate", Reason: "is required"}
	}
	if ret.IsZero() {
		return &ValidationError{Field: "returnDate", Reason: "is required"}
	}
	if !ret.After(start) {
		return &ValidationError{Field: "returnDate", Reason: "must be after startDate"}
	}
	return nil
}

// CreateSchedule admits a new equipment reservation. The ledger insert
// and the inventory decrement commit in one transaction; the decrement
// is conditional on sufficient quantity, so concurrent requests cannot
// overcommit the item.
func (s *Service) CreateSchedule(ctx context.Context, in ScheduleInput) (*db.Schedule, error) {
	if err := in.validate(); err != nil {
		s.reject("schedule", err)
		return nil, err
	}

	equipment, err := s.equipment.Get(ctx, in.EquipmentID)
	if err != nil {
		s.reject("schedule", err)
		return nil, err
	}
	if !Available(equipment.Quantity, in.Quantity) {
		err := &InsufficientInventoryError{
			ItemID:    equipment.ID,
			ItemName:  equipment.Name,
			Requested: in.Quantity,
			Available: equipment.Quantity,
		}
		s.reject("schedule", err)
		return nil, err
	}

	schedule := &db.Schedule{
		Name:        in.Name,
		Quantity:    in.Quantity,
		StartDate:   in.StartDate,
		ReturnDate:  in.ReturnDate,
		WeekDay:     in.WeekDay,
		Type:        in.Type,
		EquipmentID: in.EquipmentID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.equipment.ReserveQuantity(ctx, tx, in.EquipmentID, in.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return s.scheduleShortfall(ctx, tx, in)
		}
		return s.schedules.CreateTx(ctx, tx, schedule)
	})
	if err != nil {
		s.reject("schedule", err)
		return nil, err
	}

	s.metrics.ReservationsCreated.WithLabelValues("schedule").Inc()
	s.metrics.ReservationsOutstanding.WithLabelValues("schedule").Inc()
	s.log.Info("Schedule created",
		zap.Uint("id", schedule.ID),
		zap.Uint("equipment_id", schedule.EquipmentID),
		zap.Int32("quantity", schedule.Quantity),
	)

	s.publishAsync(func(ctx context.Context) error {
		return s.publisher.PublishScheduleCreated(ctx, schedule)
	})

	return schedule, nil
}

// scheduleShortfall explains a failed conditional decrement: either the
// item vanished mid-flight or concurrent reservations drained it.
func (s *Service) scheduleShortfall(ctx context.Context, tx *gorm.DB, in ScheduleInput) error {
	var current db.Equipment
	if err := tx.WithContext(ctx).First(&current, in.EquipmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repo.ErrEquipmentNotFound
		}
		return err
	}
	return &InsufficientInventoryError{
		ItemID:    current.ID,
		ItemName:  current.Name,
		Requested: in.Quantity,
		Available: current.Quantity,
	}
}

// ReturnSchedule marks a schedule returned and credits the equipment
// quantity back, both in one transaction. Returning twice fails; the
// conditional flip guarantees the credit is applied exactly once even
// under concurrent return attempts.
func (s *Service) ReturnSchedule(ctx context.Context, id uint) (*db.Schedule, error) {
	schedule, err := s.schedules.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if schedule.Returned {
		return nil, &AlreadyReturnedError{Resource: "schedule", ID: id}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.schedules.MarkReturned(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return &AlreadyReturnedError{Resource: "schedule", ID: id}
		}
		return s.equipment.ReleaseQuantity(ctx, tx, schedule.EquipmentID, schedule.Quantity)
	})
	if err != nil {
		return nil, err
	}

	schedule.Returned = true
	s.metrics.ReservationsReturned.WithLabelValues("schedule").Inc()
	s.metrics.ReservationsOutstanding.WithLabelValues("schedule").Dec()
	s.log.Info("Schedule returned",
		zap.Uint("id", schedule.ID),
		zap.Uint("equipment_id", schedule.EquipmentID),
		zap.Int32("quantity", schedule.Quantity),
	)

	s.publishAsync(func(ctx context.Context) error {
		return s.publisher.PublishScheduleReturned(ctx, schedule)
	})

	return schedule, nil
}

// ScheduleUpdate carries optional edits to a schedule. Quantity and
// equipment reference are intentionally absent: changing either after
// creation would desynchronize the inventory decrement already applied.
type ScheduleUpdate struct {
	Name       *string
	StartDate  *time.Time
	ReturnDate *time.Time
	WeekDay    *string
	Type       *string
}

// UpdateSchedule edits holder name, dates and labels. Inventory is not
// touched.
func (s *Service) UpdateSchedule(ctx context.Context, id uint, in ScheduleUpdate) (*db.Schedule, error) {
	existing, err := s.schedules.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	start, ret := existing.StartDate, existing.ReturnDate
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if in.ReturnDate != nil {
		ret = *in.ReturnDate
	}
	if err := validateDates(start, ret); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, &ValidationError{Field: "name", Reason: "cannot be empty"}
		}
		updates["name"] = *in.Name
	}
	if in.StartDate != nil {
		updates["start_date"] = *in.StartDate
	}
	if in.ReturnDate != nil {
		updates["return_date"] = *in.ReturnDate
	}
	if in.WeekDay != nil {
		updates["week_day"] = *in.WeekDay
	}
	if in.Type != nil {
		updates["type"] = *in.Type
	}
	if len(updates) == 0 {
		return existing, nil
	}

	return s.schedules.Update(ctx, id, updates)
}

// ListSchedules returns the schedule ledger, optionally filtered by
// returned state
func (s *Service) ListSchedules(ctx context.Context, returned *bool) ([]*db.Schedule, error) {
	return s.schedules.List(ctx, returned)
}

// GetSchedule retrieves one schedule
func (s *Service) GetSchedule(ctx context.Context, id uint) (*db.Schedule, error) {
	return s.schedules.Get(ctx, id)
}

// DeleteSchedule removes a returned schedule from the ledger. An
// outstanding schedule still holds inventory; deleting it would strand
// the decrement.
func (s *Service) DeleteSchedule(ctx context.Context, id uint) error {
	err := s.schedules.Delete(ctx, id)
	if errors.Is(err, repo.ErrScheduleOutstanding) {
		return &ConflictError{Reason: "schedule is outstanding; return it before deleting"}
	}
	return err
}

// CreateLoan lends one copy of a book. Same transactional shape as
// CreateSchedule with an implicit quantity of 1.
func (s *Service) CreateLoan(ctx context.Context, in LoanInput) (*db.Loan, error) {
	if err := in.validate(); err != nil {
		s.reject("loan", err)
		return nil, err
	}

	book, err := s.books.Get(ctx, in.BookID)
	if err != nil {
		s.reject("loan", err)
		return nil, err
	}
	if !Available(book.Quantity, 1) {
		err := &InsufficientInventoryError{
			ItemID:    book.ID,
			ItemName:  book.Name,
			Requested: 1,
			Available: book.Quantity,
		}
		s.reject("loan", err)
		return nil, err
	}

	loan := &db.Loan{
		Name:         in.Name,
		SeriesCourse: in.SeriesCourse,
		StartDate:    in.StartDate,
		ReturnDate:   in.ReturnDate,
		BookID:       in.BookID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.books.ReserveCopy(ctx, tx, in.BookID)
		if err != nil {
			return err
		}
		if !ok {
			return s.loanShortfall(ctx, tx, in.BookID)
		}
		return s.loans.CreateTx(ctx, tx, loan)
	})
	if err != nil {
		s.reject("loan", err)
		return nil, err
	}

	s.metrics.ReservationsCreated.WithLabelValues("loan").Inc()
	s.metrics.ReservationsOutstanding.WithLabelValues("loan").Inc()
	s.log.Info("Loan created", zap.Uint("id", loan.ID), zap.Uint("book_id", loan.BookID))

	s.publishAsync(func(ctx context.Context) error {
		return s.publisher.PublishLoanCreated(ctx, loan)
	})

	return loan, nil
}

func (s *Service) loanShortfall(ctx context.Context, tx *gorm.DB, bookID uint) error {
	var current db.Book
	if err := tx.WithContext(ctx).First(&current, bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repo.ErrBookNotFound
		}
		return err
	}
	return &InsufficientInventoryError{
		ItemID:    current.ID,
		ItemName:  current.Name,
		Requested: 1,
		Available: current.Quantity,
	}
}

// ReturnLoan marks a loan returned and puts the copy back on the shelf
func (s *Service) ReturnLoan(ctx context.Context, id uint) (*db.Loan, error) {
	loan, err := s.loans.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if loan.Returned {
		return nil, &AlreadyReturnedError{Resource: "loan", ID: id}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.loans.MarkReturned(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return &AlreadyReturnedError{Resource: "loan", ID: id}
		}
		return s.books.ReleaseCopy(ctx, tx, loan.BookID)
	})
	if err != nil {
		return nil, err
	}

	loan.Returned = true
	s.metrics.ReservationsReturned.WithLabelValues("loan").Inc()
	s.metrics.ReservationsOutstanding.WithLabelValues("loan").Dec()
	s.log.Info("Loan returned", zap.Uint("id", loan.ID), zap.Uint("book_id", loan.BookID))

	s.publishAsync(func(ctx context.Context) error {
		return s.publisher.PublishLoanReturned(ctx, loan)
	})

	return loan, nil
}

// LoanUpdate carries optional edits to a loan. The book reference is
// intentionally absent, same reasoning as ScheduleUpdate.
type LoanUpdate struct {
	Name         *string
	SeriesCourse *string
	StartDate    *time.Time
	ReturnDate   *time.Time
}

// UpdateLoan edits holder name, dates and the series/course label
func (s *Service) UpdateLoan(ctx context.Context, id uint, in LoanUpdate) (*db.Loan, error) {
	existing, err := s.loans.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	start, ret := existing.StartDate, existing.ReturnDate
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if in.ReturnDate != nil {
		ret = *in.ReturnDate
	}
	if err := validateDates(start, ret); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, &ValidationError{Field: "name", Reason: "cannot be empty"}
		}
		updates["name"] = *in.Name
	}
	if in.SeriesCourse != nil {
		updates["series_course"] = *in.SeriesCourse
	}
	if in.StartDate != nil {
		updates["start_date"] = *in.StartDate
	}
	if in.ReturnDate != nil {
		updates["return_date"] = *in.ReturnDate
	}
	if len(updates) == 0 {
		return existing, nil
	}

	return s.loans.Update(ctx, id, updates)
}

// ListLoans returns the loan ledger, optionally filtered by returned
// state
func (s *Service) ListLoans(ctx context.Context, returned *bool) ([]*db.Loan, error) {
	return s.loans.List(ctx, returned)
}

// GetLoan retrieves one loan
func (s *Service) GetLoan(ctx context.Context, id uint) (*db.Loan, error) {
	return s.loans.Get(ctx, id)
}

// DeleteLoan removes a returned loan from the ledger
func (s *Service) DeleteLoan(ctx context.Context, id uint) error {
	err := s.loans.Delete(ctx, id)
	if errors.Is(err, repo.ErrLoanOutstanding) {
		return &ConflictError{Reason: "loan is outstanding; return it before deleting"}
	}
	return err
}

func (s *Service) reject(kind string, err error) {
	s.metrics.ReservationsRejected.WithLabelValues(kind, rejectionReason(err)).Inc()
}

func rejectionReason(err error) string {
	var validationErr *ValidationError
	var insufficientErr *InsufficientInventoryError
	switch {
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &insufficientErr):
		return "insufficient_inventory"
	case errors.Is(err, repo.ErrEquipmentNotFound), errors.Is(err, repo.ErrBookNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

// publishAsync fires an event without blocking the request; publish
// failures are logged by the publisher and never fail the operation.
func (s *Service) publishAsync(publish func(ctx context.Context) error) {
	if s.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := publish(ctx); err != nil {
			s.log.Error("Failed to publish event", zap.Error(err))
		}
	}()
}
