// Package catalog serves the cached, paginated product, service and shop
// listings.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/cache"
	"github.com/ariefcatur/marketplace-core/internal/filter"
	"github.com/ariefcatur/marketplace-core/internal/postgres"
	"github.com/ariefcatur/marketplace-core/internal/redisx"
	"github.com/ariefcatur/marketplace-core/internal/shops"
)

type Engine struct {
	db    postgres.Querier
	cache *cache.Tiered
	ttl   time.Duration
}

func New(db postgres.Querier, c *cache.Tiered, ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Engine{db: db, cache: c, ttl: ttl}
}

func (e *Engine) ListProducts(ctx context.Context, f filter.ProductFilter) (Page[Product], error) {
	if err := f.Validate(); err != nil {
		return Page[Product]{}, err
	}
	key, err := filter.Key(redisx.Products, f.Canonical())
	if err != nil {
		return Page[Product]{}, err
	}
	return cache.Remember(ctx, e.cache, key, e.ttl, func(ctx context.Context) (Page[Product], error) {
		return e.queryProducts(ctx, f)
	})
}

func (e *Engine) ListServices(ctx context.Context, f filter.ServiceFilter) (Page[Service], error) {
	if err := f.Validate(); err != nil {
		return Page[Service]{}, err
	}
	key, err := filter.Key(redisx.Services, f.Canonical())
	if err != nil {
		return Page[Service]{}, err
	}
	return cache.Remember(ctx, e.cache, key, e.ttl, func(ctx context.Context) (Page[Service], error) {
		return e.queryServices(ctx, f)
	})
}

func (e *Engine) ListShops(ctx context.Context, city, state, excludeOwnerID string) ([]shops.Shop, error) {
	city = strings.ToLower(strings.TrimSpace(city))
	state = strings.ToLower(strings.TrimSpace(state))
	excludeOwnerID = strings.TrimSpace(excludeOwnerID)
	key := redisx.ShopsList.Key(city, state, excludeOwnerID)
	return cache.Remember(ctx, e.cache, key, redisx.TTLShopsList, func(ctx context.Context) ([]shops.Shop, error) {
		return shops.List(ctx, e.db, city, state, excludeOwnerID)
	})
}

func (e *Engine) queryProducts(ctx context.Context, f filter.ProductFilter) (Page[Product], error) {
	var a filter.Args
	where := []string{"NOT p.is_deleted"}
	var order []string
	distance := "NULL::double precision"

	if c := strings.TrimSpace(f.Category); c != "" {
		where = append(where, "lower(p.category) = "+a.Add(strings.ToLower(c)))
	}
	if f.MinPrice != nil {
		where = append(where, "p.price >= "+a.Add(*f.MinPrice)+"::numeric")
	}
	if f.MaxPrice != nil {
		where = append(where, "p.price <= "+a.Add(*f.MaxPrice)+"::numeric")
	}
	if tags := filter.NormalizeTags(f.Tags); len(tags) > 0 {
		where = append(where, "p.tags @> "+a.Add(tags)+"::text[]")
	}
	if attrs := filter.NormalizeAttributes(f.Attributes); len(attrs) > 0 {
		where = append(where, "p.attributes @> "+a.Add(attrs)+"::jsonb")
	}
	if id := strings.TrimSpace(f.ShopID); id != "" {
		where = append(where, "p.shop_id = "+a.Add(id))
	}
	if c := strings.TrimSpace(f.City); c != "" {
		where = append(where, "lower(s.city) = "+a.Add(strings.ToLower(c)))
	}
	if st := strings.TrimSpace(f.State); st != "" {
		where = append(where, "lower(s.state) = "+a.Add(strings.ToLower(st)))
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		tsq := "plainto_tsquery('english', " + a.Add(q) + ")"
		where = append(where, "p.search_vector @@ "+tsq)
		order = append(order,
			"(lower(p.name) LIKE "+a.Add(likePrefix(q))+") DESC",
			"ts_rank(p.search_vector, "+tsq+") DESC",
		)
	}
	if f.Geo != nil {
		var within string
		distance, within = f.Geo.Build(&a, "s.latitude", "s.longitude")
		where = append(where, within)
		order = append(order, "distance ASC")
	}
	order = append(order, "p.created_at DESC", "p.id")

	limit, offset := f.Window()
	sql := fmt.Sprintf(`
		SELECT p.id, p.shop_id, p.name, p.description, p.price, p.mrp, p.category,
		       p.images, p.tags, p.attributes, p.stock, p.low_stock_threshold, p.created_at,
		       %s AS distance
		FROM products p
		JOIN shops s ON s.id = p.shop_id
		WHERE %s
		ORDER BY %s
		LIMIT %s OFFSET %s`,
		distance, strings.Join(where, " AND "), strings.Join(order, ", "), a.Add(limit), a.Add(offset))

	rows, err := e.db.Query(ctx, sql, a.Values()...)
	if err != nil {
		return Page[Product]{}, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	items := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.ShopID, &p.Name, &p.Description, &p.Price, &p.MRP, &p.Category,
			&p.Images, &p.Tags, &p.Attributes, &p.Stock, &p.LowStockThreshold, &p.CreatedAt,
			&p.Distance); err != nil {
			return Page[Product]{}, fmt.Errorf("list products: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return Page[Product]{}, fmt.Errorf("list products: %w", err)
	}

	page := trim(items, limit-1)
	modes, err := shops.LoadModes(ctx, e.db, distinctShopIDs(page.Items))
	if err != nil {
		return Page[Product]{}, fmt.Errorf("list products: load shop modes: %w", err)
	}
	annotate(page.Items, modes)
	return page, nil
}

func (e *Engine) queryServices(ctx context.Context, f filter.ServiceFilter) (Page[Service], error) {
	var a filter.Args
	where := []string{"NOT sv.is_deleted", "sv.is_available"}
	var order []string
	distance := "NULL::double precision"

	if c := strings.TrimSpace(f.Category); c != "" {
		where = append(where, "lower(sv.category) = "+a.Add(strings.ToLower(c)))
	}
	if id := strings.TrimSpace(f.ProviderID); id != "" {
		where = append(where, "sv.provider_id = "+a.Add(id))
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		p := a.Add("%" + escapeLike(strings.ToLower(q)) + "%")
		where = append(where, "(lower(sv.name) LIKE "+p+" OR lower(sv.category) LIKE "+p+")")
		order = append(order, "(lower(sv.name) LIKE "+a.Add(likePrefix(q))+") DESC")
	}
	if f.AvailableNow {
		where = append(where, "sv.is_available_now")
	}
	if f.Geo != nil {
		var within string
		distance, within = f.Geo.Build(&a, "pr.latitude", "pr.longitude")
		where = append(where, within)
		order = append(order, "distance ASC")
	}
	order = append(order, "sv.created_at DESC", "sv.id")

	limit, offset := f.Window()
	sql := fmt.Sprintf(`
		SELECT sv.id, sv.provider_id, pr.name, sv.name, sv.category, sv.price, sv.duration_minutes,
		       sv.max_daily_bookings, sv.allowed_slots, sv.is_available, sv.is_available_now,
		       sv.created_at, %s AS distance
		FROM services sv
		JOIN providers pr ON pr.id = sv.provider_id
		WHERE %s
		ORDER BY %s
		LIMIT %s OFFSET %s`,
		distance, strings.Join(where, " AND "), strings.Join(order, ", "), a.Add(limit), a.Add(offset))

	rows, err := e.db.Query(ctx, sql, a.Values()...)
	if err != nil {
		return Page[Service]{}, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	items := []Service{}
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.ProviderID, &s.ProviderName, &s.Name, &s.Category, &s.Price,
			&s.DurationMinutes, &s.MaxDailyBookings, &s.AllowedSlots, &s.IsAvailable, &s.IsAvailableNow,
			&s.CreatedAt, &s.Distance); err != nil {
			return Page[Service]{}, fmt.Errorf("list services: %w", err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return Page[Service]{}, fmt.Errorf("list services: %w", err)
	}
	return trim(items, limit-1), nil
}

func trim[T any](items []T, size int) Page[T] {
	if len(items) > size {
		return Page[T]{Items: items[:size], HasMore: true}
	}
	return Page[T]{Items: items}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func likePrefix(q string) string { return escapeLike(strings.ToLower(q)) + "%" }
