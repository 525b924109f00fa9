//go:build integration

package orders

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ariefcatur/marketplace-core/internal/apperr"
	"github.com/ariefcatur/marketplace-core/internal/cache"
	"github.com/ariefcatur/marketplace-core/internal/events"
	"github.com/ariefcatur/marketplace-core/internal/inventory"
	"github.com/ariefcatur/marketplace-core/internal/postgres/pgtest"
	"github.com/ariefcatur/marketplace-core/internal/redisx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Engine, *pgxpool.Pool, *events.Recorder) {
	pool := pgtest.New(t)
	pgtest.Exec(t, pool, `
		INSERT INTO shops (id, owner_id, name, catalog_mode_enabled, allow_pay_later) VALUES
		('shop', 'owner', 'Strict Shop', false, false),
		('cat', 'cat-owner', 'Catalog Shop', true, true)`)
	pgtest.Exec(t, pool, `
		INSERT INTO products (id, shop_id, name, price, stock, low_stock_threshold) VALUES
		('p1', 'shop', 'One', 10.50, 10, 2),
		('p2', 'shop', 'Two', 5, 1, 0),
		('p3', 'shop', 'Three', 2, 50, 0),
		('c1', 'cat', 'Catalog', 99, 0, 0)`)
	c, err := cache.New(redisx.Disabled(), 100)
	require.NoError(t, err)
	rec := &events.Recorder{}
	stock := inventory.NewService(pool, c, rec, 10)
	return New(pool, c, rec, stock), pool, rec
}

func stockOf(t *testing.T, pool *pgxpool.Pool, id string) int {
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id = $1`, id).Scan(&n))
	return n
}

func count(t *testing.T, pool *pgxpool.Pool, table string) int {
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT count(*) FROM `+table).Scan(&n))
	return n
}

func TestNoOversell(t *testing.T) {
	e, pool, _ := setup(t)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sold int
	)
	for i := 0; i < 12; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			qty := 1 + i%3
			_, err := e.CreateOrderWithItems(context.Background(), NewOrder{
				CustomerID: fmt.Sprintf("c%d", i),
				ShopID:     "shop",
				Items:      []ItemInput{{ProductID: "p1", Quantity: qty}},
			})
			if err != nil {
				assert.ErrorIs(t, err, apperr.ErrStockInsufficient)
				return
			}
			mu.Lock()
			sold += qty
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, sold, 10)
	assert.Equal(t, 10-sold, stockOf(t, pool, "p1"))
}

func TestAtomicOnSecondItemFailure(t *testing.T) {
	e, pool, rec := setup(t)

	_, err := e.CreateOrderWithItems(context.Background(), NewOrder{
		CustomerID: "c",
		ShopID:     "shop",
		Items: []ItemInput{
			{ProductID: "p1", Quantity: 1},
			{ProductID: "p2", Quantity: 2},
			{ProductID: "p3", Quantity: 1},
		},
	})
	var se *apperr.StockInsufficientError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "p2", se.ProductID)
	assert.Equal(t, 1, se.Available)

	assert.Equal(t, 10, stockOf(t, pool, "p1"))
	assert.Equal(t, 1, stockOf(t, pool, "p2"))
	assert.Equal(t, 50, stockOf(t, pool, "p3"))
	assert.Zero(t, count(t, pool, "orders"))
	assert.Zero(t, count(t, pool, "order_items"))
	assert.Zero(t, count(t, pool, "order_status_updates"))
	assert.Empty(t, rec.Events())
}

func TestCreateComputesTotalsAndTimeline(t *testing.T) {
	e, pool, rec := setup(t)
	ctx := context.Background()

	o, err := e.CreateOrderWithItems(ctx, NewOrder{
		CustomerID: "c",
		ShopID:     "shop",
		Items: []ItemInput{
			{ProductID: "p1", Quantity: 4},
			{ProductID: "p3", Quantity: 1},
			{ProductID: "p1", Quantity: 4},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "86", o.Total.String())
	assert.Len(t, o.Items, 2)
	assert.Equal(t, 2, stockOf(t, pool, "p1"))

	var lowStock, created int
	for _, ev := range rec.Events() {
		switch ev.Type {
		case events.EventStockLow:
			lowStock++
			assert.Equal(t, []string{"owner"}, ev.Recipients)
		case events.EventOrderCreated:
			created++
			assert.Equal(t, []string{"c", "owner"}, ev.Recipients)
		}
	}
	assert.Equal(t, 1, lowStock)
	assert.Equal(t, 1, created)

	_, err = e.UpdateStatus(ctx, StatusChange{OrderID: o.ID, Status: StatusShipped})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.UpdateStatus(ctx, StatusChange{OrderID: o.ID, Status: StatusConfirmed, Comment: "ok"})
	require.NoError(t, err)
	cancelled, err := e.UpdateStatus(ctx, StatusChange{OrderID: o.ID, Status: StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 10, stockOf(t, pool, "p1"), "cancel restocks")
	assert.Equal(t, 50, stockOf(t, pool, "p3"))

	full, err := e.Get(ctx, o.ID)
	require.NoError(t, err)
	for _, it := range full.Items {
		assert.Equal(t, ItemCancelled, it.Status)
	}

	tl, err := e.Timeline(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, tl, 3)
	assert.Equal(t, []Status{StatusPending, StatusConfirmed, StatusCancelled},
		[]Status{tl[0].Status, tl[1].Status, tl[2].Status})

	_, err = e.Timeline(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCatalogModeSkipsStock(t *testing.T) {
	e, pool, _ := setup(t)

	o, err := e.CreateOrderWithItems(context.Background(), NewOrder{
		CustomerID:    "c",
		ShopID:        "cat",
		PaymentMethod: PaymentPayLater,
		Items:         []ItemInput{{ProductID: "c1", Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, "297", o.Total.String())
	assert.Zero(t, stockOf(t, pool, "c1"))
	assert.False(t, o.StockReserved)
}

func TestRestockFollowsReservationNotCurrentMode(t *testing.T) {
	e, pool, _ := setup(t)
	ctx := context.Background()

	unreserved, err := e.CreateOrderWithItems(ctx, NewOrder{
		CustomerID: "c",
		ShopID:     "cat",
		Items:      []ItemInput{{ProductID: "c1", Quantity: 3}},
	})
	require.NoError(t, err)
	reserved, err := e.CreateOrderWithItems(ctx, NewOrder{
		CustomerID: "c",
		ShopID:     "shop",
		Items:      []ItemInput{{ProductID: "p3", Quantity: 5}},
	})
	require.NoError(t, err)
	assert.True(t, reserved.StockReserved)
	assert.Equal(t, 45, stockOf(t, pool, "p3"))

	// swap both shops' modes between creation and cancellation
	pgtest.Exec(t, pool, `UPDATE shops SET catalog_mode_enabled = NOT catalog_mode_enabled`)

	_, err = e.UpdateStatus(ctx, StatusChange{OrderID: unreserved.ID, Status: StatusCancelled})
	require.NoError(t, err)
	assert.Zero(t, stockOf(t, pool, "c1"), "nothing was taken, nothing is returned")

	_, err = e.UpdateStatus(ctx, StatusChange{OrderID: reserved.ID, Status: StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, 50, stockOf(t, pool, "p3"), "reserved stock comes back")
}

func TestCancelAfterProductDeleted(t *testing.T) {
	e, pool, _ := setup(t)
	ctx := context.Background()

	o, err := e.CreateOrderWithItems(ctx, NewOrder{
		CustomerID: "c",
		ShopID:     "shop",
		Items:      []ItemInput{{ProductID: "p3", Quantity: 2}, {ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, e.stock.SoftDelete(ctx, "shop", "p3"))

	_, err = e.UpdateStatus(ctx, StatusChange{OrderID: o.ID, Status: StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, 48, stockOf(t, pool, "p3"))
	assert.Equal(t, 10, stockOf(t, pool, "p1"))
}

func TestCreateRejections(t *testing.T) {
	e, pool, _ := setup(t)
	ctx := context.Background()

	_, err := e.CreateOrderWithItems(ctx, NewOrder{CustomerID: "c", ShopID: "shop"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.CreateOrderWithItems(ctx, NewOrder{CustomerID: "c", ShopID: "shop", PaymentMethod: PaymentPayLater,
		Items: []ItemInput{{ProductID: "p1", Quantity: 1}}})
	assert.ErrorIs(t, err, apperr.ErrValidation, "shop does not allow pay later")

	_, err = e.CreateOrderWithItems(ctx, NewOrder{CustomerID: "c", ShopID: "shop",
		Items: []ItemInput{{ProductID: "c1", Quantity: 1}}})
	assert.ErrorIs(t, err, apperr.ErrValidation, "product from another shop")

	_, err = e.CreateOrderWithItems(ctx, NewOrder{CustomerID: "c", ShopID: "shop",
		Items: []ItemInput{{ProductID: "ghost", Quantity: 1}}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.CreateOrderWithItems(ctx, NewOrder{CustomerID: "c", ShopID: "nope",
		Items: []ItemInput{{ProductID: "p1", Quantity: 1}}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Zero(t, count(t, pool, "orders"))
	assert.Equal(t, 10, stockOf(t, pool, "p1"))
}

func TestDashboardStatsInvalidatedOnChange(t *testing.T) {
	e, _, _ := setup(t)
	ctx := context.Background()

	st, err := e.DashboardStats(ctx, "shop")
	require.NoError(t, err)
	assert.Zero(t, st.TotalOrders)

	o, err := e.CreateOrderWithItems(ctx, NewOrder{CustomerID: "c", ShopID: "shop",
		Items: []ItemInput{{ProductID: "p3", Quantity: 2}}})
	require.NoError(t, err)

	st, err = e.DashboardStats(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalOrders)
	assert.Equal(t, 1, st.PendingOrders)

	for _, s := range []Status{StatusConfirmed, StatusProcessing, StatusPacked, StatusShipped, StatusDelivered} {
		_, err = e.UpdateStatus(ctx, StatusChange{OrderID: o.ID, Status: s})
		require.NoError(t, err)
	}
	st, err = e.DashboardStats(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, 1, st.DeliveredOrders)
	assert.Equal(t, "4", st.Revenue.String())
}
