//go:build integration

package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/apperr"
	"github.com/ariefcatur/marketplace-core/internal/cache"
	"github.com/ariefcatur/marketplace-core/internal/events"
	"github.com/ariefcatur/marketplace-core/internal/postgres/pgtest"
	"github.com/ariefcatur/marketplace-core/internal/redisx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Service, *pgxpool.Pool, *events.Recorder) {
	pool := pgtest.New(t)
	pgtest.Exec(t, pool, `INSERT INTO shops (id, owner_id, name) VALUES ('shop', 'owner', 'Shop')`)
	pgtest.Exec(t, pool, `
		INSERT INTO products (id, shop_id, name, price, stock, low_stock_threshold) VALUES
		('a', 'shop', 'A', 1, 5, 3),
		('b', 'shop', 'B', 1, 0, 0)`)
	c, err := cache.New(redisx.Disabled(), 100)
	require.NoError(t, err)
	rec := &events.Recorder{}
	return NewService(pool, c, rec, 2), pool, rec
}

func TestAdjustStock(t *testing.T) {
	s, _, rec := setup(t)
	ctx := context.Background()

	lvl, err := s.AdjustStock(ctx, "a", -2)
	require.NoError(t, err)
	assert.Equal(t, 3, lvl.Stock)
	require.Len(t, rec.Events(), 1)
	assert.Equal(t, events.EventStockLow, rec.Events()[0].Type)
	assert.Equal(t, []string{"owner"}, rec.Events()[0].Recipients)

	_, err = s.AdjustStock(ctx, "a", -1)
	require.NoError(t, err)
	assert.Len(t, rec.Events(), 1, "already below threshold")

	_, err = s.AdjustStock(ctx, "a", -5)
	var se *apperr.StockInsufficientError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Available)

	lvl, err = s.AdjustStock(ctx, "b", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, lvl.Stock)

	_, err = s.AdjustStock(ctx, "b", 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.AdjustStock(ctx, "ghost", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBulkAdjust(t *testing.T) {
	s, _, _ := setup(t)
	ctx := context.Background()
	s.cache.Set(ctx, redisx.DashboardStats.Key("shop"), 7, time.Minute)
	s.cache.Set(ctx, redisx.DashboardStats.Key("other"), 8, time.Minute)

	res := s.BulkAdjust(ctx, []Adjustment{
		{ProductID: "a", Delta: 1},
		{ProductID: "b", Delta: -1},
		{ProductID: "a", Delta: 1},
		{ProductID: "ghost", Delta: 1},
		{ProductID: "b", Delta: 3},
	})
	require.Len(t, res, 5)
	assert.NoError(t, res[0].Err)
	assert.ErrorIs(t, res[1].Err, apperr.ErrStockInsufficient)
	assert.NotEmpty(t, res[1].Error)
	assert.ErrorIs(t, res[3].Err, apperr.ErrNotFound)
	assert.Equal(t, 3, res[4].Stock)

	var n int
	assert.False(t, s.cache.Get(ctx, redisx.DashboardStats.Key("shop"), &n), "touched shop's dashboard dropped")
	assert.True(t, s.cache.Get(ctx, redisx.DashboardStats.Key("other"), &n))
}

func TestSoftDelete(t *testing.T) {
	s, pool, _ := setup(t)
	ctx := context.Background()
	pgtest.Exec(t, pool, `INSERT INTO cart_items (customer_id, product_id, quantity) VALUES ('c1', 'a', 2), ('c2', 'b', 1)`)
	pgtest.Exec(t, pool, `INSERT INTO wishlist_items (customer_id, product_id) VALUES ('c1', 'a')`)

	assert.ErrorIs(t, s.SoftDelete(ctx, "other-shop", "a"), apperr.ErrValidation)
	require.NoError(t, s.SoftDelete(ctx, "shop", "a"))
	assert.ErrorIs(t, s.SoftDelete(ctx, "shop", "a"), apperr.ErrNotFound)

	var deleted bool
	var carts, wishes int
	require.NoError(t, pool.QueryRow(ctx, `SELECT is_deleted FROM products WHERE id = 'a'`).Scan(&deleted))
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM cart_items`).Scan(&carts))
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM wishlist_items`).Scan(&wishes))
	assert.True(t, deleted)
	assert.Equal(t, 1, carts)
	assert.Zero(t, wishes)

	_, err := s.AdjustStock(ctx, "a", -1)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "deleted products cannot be sold")
	_, err = s.AdjustStock(ctx, "a", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "deleted products cannot be restocked")
}
