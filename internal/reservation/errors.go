package reservation

import "fmt"

// ValidationError reports malformed or out-of-range input. It is raised
// before any inventory is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientInventoryError reports that the requested quantity exceeds
// what the item currently has available.
type InsufficientInventoryError struct {
	ItemID    uint
	ItemName  string
	Requested int32
	Available int32
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for %q (id %d): requested %d, available %d, short by %d",
		e.ItemName, e.ItemID, e.Requested, e.Available, e.Requested-e.Available)
}

// AlreadyReturnedError reports a second return attempt on the same
// record. The first return already credited the inventory; honoring the
// second would double-count it.
type AlreadyReturnedError struct {
	Resource string
	ID       uint
}

func (e *AlreadyReturnedError) Error() string {
	return fmt.Sprintf("%s %d has already been returned", e.Resource, e.ID)
}

// ConflictError reports an operation that would leave the ledger and the
// inventory out of sync, such as deleting an outstanding record.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}
