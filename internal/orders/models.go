package orders

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const PaymentPayLater = "pay_later"

type Order struct {
	ID            string          `json:"id"`
	CustomerID    string          `json:"customer_id"`
	ShopID        string          `json:"shop_id"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	PaymentMethod string          `json:"payment_method"`
	Total         decimal.Decimal `json:"total"`
	StockReserved bool            `json:"stock_reserved"` // set when creation decremented stock
	Items         []OrderItem     `json:"items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
	Status    ItemStatus      `json:"status"`
}

type StatusUpdate struct {
	Status       Status    `json:"status"`
	Comment      string    `json:"comment"`
	TrackingInfo string    `json:"tracking_info"`
	CreatedAt    time.Time `json:"created_at"`
}

type ItemInput struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type NewOrder struct {
	CustomerID    string      `json:"customer_id" validate:"required,max=64"`
	ShopID        string      `json:"shop_id" validate:"required,max=64"`
	PaymentMethod string      `json:"payment_method" validate:"omitempty,oneof=cod upi card pay_later"`
	Items         []ItemInput `json:"items" validate:"dive"`
}

type StatusChange struct {
	OrderID      string `json:"order_id" validate:"required"`
	Status       Status `json:"status" validate:"required"`
	Comment      string `json:"comment" validate:"max=500"`
	TrackingInfo string `json:"tracking_info" validate:"max=200"`
}

type DashboardStats struct {
	ShopID           string          `json:"shop_id"`
	TotalOrders      int             `json:"total_orders"`
	PendingOrders    int             `json:"pending_orders"`
	ActiveOrders     int             `json:"active_orders"`
	DeliveredOrders  int             `json:"delivered_orders"`
	CancelledOrders  int             `json:"cancelled_orders"`
	Revenue          decimal.Decimal `json:"revenue"`
	LowStockProducts int             `json:"low_stock_products"`
}

// coalesce merges lines for the same product and sorts by product id so
// stock rows are always locked in the same order.
func coalesce(items []ItemInput) []ItemInput {
	qty := make(map[string]int, len(items))
	for _, it := range items {
		qty[it.ProductID] += it.Quantity
	}
	out := make([]ItemInput, 0, len(qty))
	for id, q := range qty {
		out = append(out, ItemInput{ProductID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
