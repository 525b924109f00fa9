// Package orders creates orders atomically with their items and stock
// decrements, and records the order status timeline.
package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/marketplace-core/internal/apperr"
	"github.com/ariefcatur/marketplace-core/internal/cache"
	"github.com/ariefcatur/marketplace-core/internal/events"
	"github.com/ariefcatur/marketplace-core/internal/inventory"
	"github.com/ariefcatur/marketplace-core/internal/postgres"
	"github.com/ariefcatur/marketplace-core/internal/redisx"
	"github.com/ariefcatur/marketplace-core/internal/shops"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

type Engine struct {
	db     *pgxpool.Pool
	cache  *cache.Tiered
	events events.Emitter
	stock  *inventory.Service
}

func New(db *pgxpool.Pool, c *cache.Tiered, em events.Emitter, stock *inventory.Service) *Engine {
	return &Engine{db: db, cache: c, events: em, stock: stock}
}

type pricedProduct struct {
	shopID string
	price  decimal.Decimal
}

// CreateOrderWithItems writes the order, its items, the initial timeline
// entry and (for stock-enforcing shops) the stock decrements in one
// transaction. Totals come from stored prices. Any failure leaves no trace.
func (e *Engine) CreateOrderWithItems(ctx context.Context, in NewOrder) (Order, error) {
	if len(in.Items) == 0 {
		return Order{}, apperr.Validation("order has no items")
	}
	if err := validate.Struct(in); err != nil {
		return Order{}, apperr.Validation("order: %v", err)
	}
	lines := coalesce(in.Items)

	var (
		o    Order
		shop shops.Shop
		low  []inventory.Level
	)
	err := postgres.WithTx(ctx, e.db, func(tx pgx.Tx) error {
		var err error
		if shop, err = shops.Get(ctx, tx, in.ShopID); err != nil {
			return err
		}
		if in.PaymentMethod == PaymentPayLater && !shop.AllowPayLater {
			return apperr.Validation("shop %s does not accept pay later", shop.ID)
		}

		products, err := loadProducts(ctx, tx, lines)
		if err != nil {
			return err
		}
		for _, l := range lines {
			p, ok := products[l.ProductID]
			if !ok {
				return apperr.NotFound("product", l.ProductID)
			}
			if p.shopID != in.ShopID {
				return apperr.Validation("product %s does not belong to shop %s", l.ProductID, in.ShopID)
			}
		}

		if shop.StockEnforced() {
			for _, l := range lines {
				lvl, err := inventory.Decrement(ctx, tx, l.ProductID, l.Quantity)
				if err != nil {
					return err
				}
				if lvl.CrossedLow(l.Quantity) {
					low = append(low, lvl)
				}
			}
		}

		total := decimal.Zero
		for _, l := range lines {
			total = total.Add(products[l.ProductID].price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}

		o, err = scanOrder(tx.QueryRow(ctx, `
			INSERT INTO orders (id, customer_id, shop_id, status, payment_status, payment_method, total, stock_reserved)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+orderColumns,
			uuid.NewString(), in.CustomerID, in.ShopID, StatusPending, PaymentPending, in.PaymentMethod, total,
			shop.StockEnforced()))
		if err != nil {
			return err
		}

		for _, l := range lines {
			price := products[l.ProductID].price
			it := OrderItem{
				OrderID:   o.ID,
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				Price:     price,
				Total:     price.Mul(decimal.NewFromInt(int64(l.Quantity))),
				Status:    ItemOrdered,
			}
			if err := tx.QueryRow(ctx, `
				INSERT INTO order_items (order_id, product_id, quantity, price, total, status)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				it.OrderID, it.ProductID, it.Quantity, it.Price, it.Total, it.Status).Scan(&it.ID); err != nil {
				return err
			}
			o.Items = append(o.Items, it)
		}

		return appendUpdate(ctx, tx, o.ID, StatusPending, "order placed", "")
	})
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}

	e.afterChange(ctx, events.EventOrderCreated, o, shop.OwnerID)
	if len(low) > 0 {
		e.stock.NotifyLowStock(ctx, low...)
	}
	return o, nil
}

func loadProducts(ctx context.Context, tx pgx.Tx, lines []ItemInput) (map[string]pricedProduct, error) {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	rows, err := tx.Query(ctx, `SELECT id, shop_id, price FROM products WHERE id = ANY($1) AND NOT is_deleted`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]pricedProduct, len(ids))
	for rows.Next() {
		var (
			id string
			p  pricedProduct
		)
		if err := rows.Scan(&id, &p.shopID, &p.price); err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, rows.Err()
}

// UpdateStatus moves the order along its lifecycle and appends the change to
// the timeline in the same transaction. Cancelling or returning gives stock
// back for shops that enforce it.
func (e *Engine) UpdateStatus(ctx context.Context, ch StatusChange) (Order, error) {
	if err := validate.Struct(ch); err != nil {
		return Order{}, apperr.Validation("status change: %v", err)
	}

	var (
		o    Order
		shop shops.Shop
	)
	err := postgres.WithTx(ctx, e.db, func(tx pgx.Tx) error {
		cur, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, ch.OrderID))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("order", ch.OrderID)
		}
		if err != nil {
			return err
		}
		if !CanTransition(cur.Status, ch.Status) {
			return apperr.Validation("order %s cannot move from %s to %s", cur.ID, cur.Status, ch.Status)
		}
		if shop, err = shops.Get(ctx, tx, cur.ShopID); err != nil {
			return err
		}

		if itemStatus, ok := restocks(ch.Status); ok {
			if err := e.releaseItems(ctx, tx, cur.ID, itemStatus, cur.StockReserved); err != nil {
				return err
			}
		}

		o, err = scanOrder(tx.QueryRow(ctx, `
			UPDATE orders SET status = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+orderColumns, cur.ID, ch.Status))
		if err != nil {
			return err
		}
		return appendUpdate(ctx, tx, o.ID, ch.Status, ch.Comment, ch.TrackingInfo)
	})
	if err != nil {
		return Order{}, fmt.Errorf("update order status: %w", err)
	}

	e.afterChange(ctx, events.EventOrderStatusChanged, o, shop.OwnerID)
	return o, nil
}

func (e *Engine) releaseItems(ctx context.Context, tx pgx.Tx, orderID string, to ItemStatus, restock bool) error {
	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity FROM order_items
		WHERE order_id = $1 AND status = $2
		ORDER BY product_id`, orderID, ItemOrdered)
	if err != nil {
		return err
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ItemInput, error) {
		var l ItemInput
		err := row.Scan(&l.ProductID, &l.Quantity)
		return l, err
	})
	if err != nil {
		return err
	}
	if restock {
		for _, l := range lines {
			_, err := inventory.Increment(ctx, tx, l.ProductID, l.Quantity)
			// deleted products have no stock to return to
			if err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
		}
	}
	_, err = tx.Exec(ctx, `UPDATE order_items SET status = $3 WHERE order_id = $1 AND status = $2`, orderID, ItemOrdered, to)
	return err
}

func (e *Engine) Get(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(e.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return o, apperr.NotFound("order", id)
	}
	if err != nil {
		return o, err
	}
	rows, err := e.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price, total, status
		FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return o, err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &it.Total, &it.Status); err != nil {
			return o, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// Timeline returns the append-only status history, oldest first.
func (e *Engine) Timeline(ctx context.Context, orderID string) ([]StatusUpdate, error) {
	var exists bool
	if err := e.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound("order", orderID)
	}
	rows, err := e.db.Query(ctx, `
		SELECT status, comment, tracking_info, created_at
		FROM order_status_updates WHERE order_id = $1
		ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StatusUpdate{}
	for rows.Next() {
		var u StatusUpdate
		if err := rows.Scan(&u.Status, &u.Comment, &u.TrackingInfo, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (e *Engine) DashboardStats(ctx context.Context, shopID string) (DashboardStats, error) {
	key := redisx.DashboardStats.Key(shopID)
	return cache.Remember(ctx, e.cache, key, redisx.TTLDashboardStats, func(ctx context.Context) (DashboardStats, error) {
		st := DashboardStats{ShopID: shopID}
		err := e.db.QueryRow(ctx, `
			SELECT count(*),
			       count(*) FILTER (WHERE status = 'pending'),
			       count(*) FILTER (WHERE status IN ('confirmed', 'processing', 'packed', 'shipped')),
			       count(*) FILTER (WHERE status = 'delivered'),
			       count(*) FILTER (WHERE status = 'cancelled'),
			       coalesce(sum(total) FILTER (WHERE status = 'delivered'), 0),
			       (SELECT count(*) FROM products
			        WHERE shop_id = $1 AND NOT is_deleted AND stock <= low_stock_threshold)
			FROM orders WHERE shop_id = $1`, shopID).
			Scan(&st.TotalOrders, &st.PendingOrders, &st.ActiveOrders, &st.DeliveredOrders,
				&st.CancelledOrders, &st.Revenue, &st.LowStockProducts)
		if err != nil {
			return st, fmt.Errorf("dashboard stats: %w", err)
		}
		return st, nil
	})
}

func (e *Engine) afterChange(ctx context.Context, typ string, o Order, shopOwnerID string) {
	e.cache.Invalidate(ctx, redisx.DashboardStats.Exact(o.ShopID))
	e.events.Emit(ctx, events.Event{
		Topic:         events.TopicOrderChanged,
		Type:          typ,
		CorrelationID: o.ID,
		Recipients:    []string{o.CustomerID, shopOwnerID},
		Payload: events.OrderChangedPayload{
			OrderID:    o.ID,
			CustomerID: o.CustomerID,
			ShopID:     o.ShopID,
			Status:     string(o.Status),
			Total:      o.Total,
		},
	})
}

const orderColumns = `id, customer_id, shop_id, status, payment_status, payment_method, total, stock_reserved, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.ShopID, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.Total, &o.StockReserved, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func appendUpdate(ctx context.Context, q postgres.Querier, orderID string, s Status, comment, tracking string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO order_status_updates (order_id, status, comment, tracking_info)
		VALUES ($1, $2, $3, $4)`, orderID, s, comment, tracking)
	return err
}
