package inventory

import (
	"context"
	"errors"

	"github.com/ariefcatur/marketplace-core/internal/apperr"
	"github.com/ariefcatur/marketplace-core/internal/postgres"
	"github.com/jackc/pgx/v5"
)

// Level is a product's stock right after a change.
type Level struct {
	ProductID string `json:"product_id"`
	ShopID    string `json:"shop_id"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"low_stock_threshold"`
}

// CrossedLow reports whether removing qty moved the product from above its
// low-stock threshold to at or below it.
func (l Level) CrossedLow(qty int) bool {
	return l.Threshold > 0 && l.Stock <= l.Threshold && l.Stock+qty > l.Threshold
}

// Decrement removes qty from the product's stock only if enough remains.
// This conditional update is the single oversell guard: concurrent callers
// never take stock below zero.
func Decrement(ctx context.Context, q postgres.Querier, productID string, qty int) (Level, error) {
	lvl := Level{ProductID: productID}
	err := q.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2 AND NOT is_deleted
		RETURNING shop_id, stock, low_stock_threshold`, productID, qty).
		Scan(&lvl.ShopID, &lvl.Stock, &lvl.Threshold)
	if !errors.Is(err, pgx.ErrNoRows) {
		return lvl, err
	}

	var available int
	err = q.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 AND NOT is_deleted`, productID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return lvl, apperr.NotFound("product", productID)
	}
	if err != nil {
		return lvl, err
	}
	return lvl, &apperr.StockInsufficientError{ProductID: productID, Required: qty, Available: available}
}

// Increment returns qty to the stock of a product that is not deleted.
func Increment(ctx context.Context, q postgres.Querier, productID string, qty int) (Level, error) {
	lvl := Level{ProductID: productID}
	err := q.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND NOT is_deleted
		RETURNING shop_id, stock, low_stock_threshold`, productID, qty).
		Scan(&lvl.ShopID, &lvl.Stock, &lvl.Threshold)
	if errors.Is(err, pgx.ErrNoRows) {
		return lvl, apperr.NotFound("product", productID)
	}
	return lvl, err
}
