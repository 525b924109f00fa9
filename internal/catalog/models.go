package catalog

import (
	"time"

	"github.com/ariefcatur/marketplace-core/internal/shops"
	"github.com/shopspring/decimal"
)

// Page is one window of a listing. HasMore is derived by fetching one row
// past the page size.
type Page[T any] struct {
	Items   []T  `json:"items"`
	HasMore bool `json:"has_more"`
}

type Product struct {
	ID                string              `json:"id"`
	ShopID            string              `json:"shop_id"`
	Name              string              `json:"name"`
	Description       string              `json:"description"`
	Price             decimal.Decimal     `json:"price"`
	MRP               decimal.NullDecimal `json:"mrp"`
	Category          string              `json:"category"`
	Images            []string            `json:"images"`
	Tags              []string            `json:"tags"`
	Attributes        map[string]any      `json:"attributes"`
	Stock             int                 `json:"stock"`
	LowStockThreshold int                 `json:"low_stock_threshold"`
	CreatedAt         time.Time           `json:"created_at"`
	Distance          *float64            `json:"distance_km,omitempty"`

	ShopModes     shops.Modes `json:"shop_modes"`
	StockEnforced bool        `json:"stock_enforced"`
	InStock       bool        `json:"in_stock"`
}

type Service struct {
	ID               string          `json:"id"`
	ProviderID       string          `json:"provider_id"`
	ProviderName     string          `json:"provider_name"`
	Name             string          `json:"name"`
	Category         string          `json:"category"`
	Price            decimal.Decimal `json:"price"`
	DurationMinutes  int             `json:"duration_minutes"`
	MaxDailyBookings *int            `json:"max_daily_bookings,omitempty"`
	AllowedSlots     []string        `json:"allowed_slots"`
	IsAvailable      bool            `json:"is_available"`
	IsAvailableNow   bool            `json:"is_available_now"`
	CreatedAt        time.Time       `json:"created_at"`
	Distance         *float64        `json:"distance_km,omitempty"`
}

// annotate attaches the owning shop's modes. Products of an unknown shop
// keep zero modes, i.e. stock enforced.
func annotate(items []Product, modes map[string]shops.Modes) {
	for i := range items {
		m := modes[items[i].ShopID]
		items[i].ShopModes = m
		items[i].StockEnforced = m.StockEnforced()
		items[i].InStock = !items[i].StockEnforced || items[i].Stock > 0
	}
}

func distinctShopIDs(items []Product) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, p := range items {
		if _, ok := seen[p.ShopID]; ok {
			continue
		}
		seen[p.ShopID] = struct{}{}
		ids = append(ids, p.ShopID)
	}
	return ids
}
