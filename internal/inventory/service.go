// Package inventory owns every stock mutation: the conditional decrement used
// by orders, manual adjustments, bulk updates and soft deletion.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/marketplace-core/internal/apperr"
	"github.com/ariefcatur/marketplace-core/internal/cache"
	"github.com/ariefcatur/marketplace-core/internal/events"
	"github.com/ariefcatur/marketplace-core/internal/postgres"
	"github.com/ariefcatur/marketplace-core/internal/redisx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Service struct {
	db     *pgxpool.Pool
	cache  *cache.Tiered
	events events.Emitter
	batch  int
}

func NewService(db *pgxpool.Pool, c *cache.Tiered, em events.Emitter, batch int) *Service {
	if batch <= 0 {
		batch = 10
	}
	return &Service{db: db, cache: c, events: em, batch: batch}
}

type Adjustment struct {
	ProductID string `json:"product_id"`
	Delta     int    `json:"delta"`
}

type Result struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
	Error     string `json:"error,omitempty"`
	Err       error  `json:"-"`
}

// AdjustStock applies delta to one product. Negative deltas go through the
// conditional decrement and fail with a StockInsufficientError rather than
// going below zero.
func (s *Service) AdjustStock(ctx context.Context, productID string, delta int) (Level, error) {
	lvl, err := s.adjust(ctx, productID, delta)
	if err != nil {
		return lvl, err
	}
	s.cache.Invalidate(ctx, redisx.Products.All())
	s.cache.Invalidate(ctx, redisx.DashboardStats.Exact(lvl.ShopID))
	return lvl, nil
}

func (s *Service) adjust(ctx context.Context, productID string, delta int) (Level, error) {
	var (
		lvl Level
		err error
	)
	switch {
	case delta == 0:
		return lvl, apperr.Validation("stock adjustment for %s is zero", productID)
	case delta < 0:
		lvl, err = Decrement(ctx, s.db, productID, -delta)
		if err == nil && lvl.CrossedLow(-delta) {
			s.NotifyLowStock(ctx, lvl)
		}
	default:
		lvl, err = Increment(ctx, s.db, productID, delta)
	}
	if err != nil {
		return lvl, fmt.Errorf("adjust stock: %w", err)
	}
	return lvl, nil
}

// BulkAdjust applies adjustments in fixed-size concurrent batches. Each
// adjustment succeeds or fails on its own; results keep input order.
func (s *Service) BulkAdjust(ctx context.Context, adj []Adjustment) []Result {
	out := make([]Result, len(adj))
	shopIDs := make([]string, len(adj))
	for start := 0; start < len(adj); start += s.batch {
		end := min(start+s.batch, len(adj))
		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				lvl, err := s.adjust(ctx, adj[i].ProductID, adj[i].Delta)
				out[i] = Result{ProductID: adj[i].ProductID, Stock: lvl.Stock, Err: err}
				if err != nil {
					out[i].Error = err.Error()
				} else {
					shopIDs[i] = lvl.ShopID
				}
				return nil
			})
		}
		_ = g.Wait()
	}
	if len(adj) > 0 {
		s.cache.Invalidate(ctx, redisx.Products.All())
	}
	seen := make(map[string]bool, len(shopIDs))
	for _, id := range shopIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		s.cache.Invalidate(ctx, redisx.DashboardStats.Exact(id))
	}
	return out
}

// SoftDelete hides a product from listings and removes it from every cart
// and wishlist. Products are never hard-deleted.
func (s *Service) SoftDelete(ctx context.Context, shopID, productID string) error {
	err := postgres.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var owner string
		err := tx.QueryRow(ctx, `SELECT shop_id FROM products WHERE id = $1 AND NOT is_deleted FOR UPDATE`, productID).Scan(&owner)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("product", productID)
		}
		if err != nil {
			return err
		}
		if owner != shopID {
			return apperr.Validation("product %s does not belong to shop %s", productID, shopID)
		}
		if _, err := tx.Exec(ctx, `UPDATE products SET is_deleted = true, updated_at = now() WHERE id = $1`, productID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE product_id = $1`, productID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM wishlist_items WHERE product_id = $1`, productID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.cache.Invalidate(ctx, redisx.Products.All())
	return nil
}

// NotifyLowStock tells the shop owner a product dropped to its threshold.
func (s *Service) NotifyLowStock(ctx context.Context, levels ...Level) {
	owners := s.owners(ctx, levels)
	for _, l := range levels {
		s.events.Emit(ctx, events.Event{
			Topic:         events.TopicStockLow,
			Type:          events.EventStockLow,
			CorrelationID: l.ProductID,
			Recipients:    []string{owners[l.ShopID]},
			Payload: events.StockLowPayload{
				ProductID: l.ProductID,
				ShopID:    l.ShopID,
				Stock:     l.Stock,
				Threshold: l.Threshold,
			},
		})
	}
}

func (s *Service) owners(ctx context.Context, levels []Level) map[string]string {
	out := make(map[string]string, len(levels))
	ids := make([]string, 0, len(levels))
	for _, l := range levels {
		ids = append(ids, l.ShopID)
	}
	rows, err := s.db.Query(ctx, `SELECT id, owner_id FROM shops WHERE id = ANY($1)`, ids)
	if err != nil {
		zap.L().Warn("load shop owners", zap.Error(err))
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var id, owner string
		if err := rows.Scan(&id, &owner); err != nil {
			zap.L().Warn("load shop owners", zap.Error(err))
			return out
		}
		out[id] = owner
	}
	return out
}
