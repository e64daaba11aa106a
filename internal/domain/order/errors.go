package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrEmptyItems is returned when an order has no lines.
var ErrEmptyItems = errors.New("items required")

// DishNotFoundError indicates a requested dish is not on the menu.
type DishNotFoundError struct {
	Name string
}

func (e *DishNotFoundError) Error() string {
	return fmt.Sprintf("dish %q not found", e.Name)
}

// QuantityOutOfRangeError indicates a line quantity outside [Min, Max].
type QuantityOutOfRangeError struct {
	Name     string
	Quantity int
	Min      int
	Max      int
}

func (e *QuantityOutOfRangeError) Error() string {
	return fmt.Sprintf("quantity %d for %q out of range [%d, %d]", e.Quantity, e.Name, e.Min, e.Max)
}

// DistrictNotFoundError indicates a delivery district outside the delivery area.
type DistrictNotFoundError struct {
	Name string
}

func (e *DistrictNotFoundError) Error() string {
	return fmt.Sprintf("district %q not found", e.Name)
}

// IncompleteError indicates a draft that cannot be confirmed yet.
type IncompleteError struct {
	Field string
}

func (e *IncompleteError) Error() string {
	return "order incomplete: missing " + e.Field
}

// PersistenceError wraps a ledger write failure. The order it belongs to must
// not be reported as confirmed.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "persist order: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }
