// Package apperr defines the error kinds shared by the transactional core.
// Callers match kinds with errors.Is; constructors wrap the sentinel so the
// message still carries the specific cause.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrCapacityExceeded   = errors.New("capacity exceeded")
	ErrStockInsufficient  = errors.New("insufficient stock")
	ErrDuplicate          = errors.New("duplicate")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFound(entity, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
}

func Capacity(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCapacityExceeded, fmt.Sprintf(format, args...))
}

func Duplicate(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDuplicate, fmt.Sprintf(format, args...))
}

// StockInsufficientError is returned when a conditional stock decrement
// affected zero rows.
type StockInsufficientError struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

func (e *StockInsufficientError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: required %d, available %d", e.ProductID, e.Required, e.Available)
}

func (e *StockInsufficientError) Is(target error) bool { return target == ErrStockInsufficient }
