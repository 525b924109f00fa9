package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("create order: %w", NotFound("product", "p-1"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "product p-1")

	assert.ErrorIs(t, Capacity("day full"), ErrCapacityExceeded)
	assert.ErrorIs(t, Duplicate("review for booking %s", "b-1"), ErrDuplicate)
	assert.ErrorIs(t, Validation("page must be >= %d", 1), ErrValidation)
}

func TestStockInsufficientError(t *testing.T) {
	var err error = fmt.Errorf("create order: %w", &StockInsufficientError{ProductID: "p-2", Required: 3, Available: 1})
	assert.ErrorIs(t, err, ErrStockInsufficient)

	var se *StockInsufficientError
	if assert.True(t, errors.As(err, &se)) {
		assert.Equal(t, "p-2", se.ProductID)
		assert.Equal(t, 3, se.Required)
	}
}
