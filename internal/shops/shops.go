package shops

import (
	"context"
	"errors"

	"github.com/ariefcatur/marketplace-core/internal/apperr"
	"github.com/ariefcatur/marketplace-core/internal/postgres"
	"github.com/jackc/pgx/v5"
)

// Modes is the per-shop operating mode flag set.
type Modes struct {
	CatalogModeEnabled bool `json:"catalog_mode_enabled"`
	OpenOrderMode      bool `json:"open_order_mode"`
	AllowPayLater      bool `json:"allow_pay_later"`
}

// StockEnforced reports whether orders against the shop must decrement stock.
func (m Modes) StockEnforced() bool { return !m.CatalogModeEnabled && !m.OpenOrderMode }

type Shop struct {
	ID        string   `json:"id"`
	OwnerID   string   `json:"owner_id"`
	Name      string   `json:"name"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Modes
}

const shopColumns = `id, owner_id, name, city, state, latitude, longitude,
	catalog_mode_enabled, open_order_mode, allow_pay_later`

func scanShop(row pgx.Row) (Shop, error) {
	var s Shop
	err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.City, &s.State, &s.Latitude, &s.Longitude,
		&s.CatalogModeEnabled, &s.OpenOrderMode, &s.AllowPayLater)
	return s, err
}

func Get(ctx context.Context, q postgres.Querier, id string) (Shop, error) {
	s, err := scanShop(q.QueryRow(ctx, `SELECT `+shopColumns+` FROM shops WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return s, apperr.NotFound("shop", id)
	}
	return s, err
}

// LoadModes fetches the modes of every listed shop in one query. Unknown ids
// are absent from the result.
func LoadModes(ctx context.Context, q postgres.Querier, ids []string) (map[string]Modes, error) {
	out := make(map[string]Modes, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `
		SELECT id, catalog_mode_enabled, open_order_mode, allow_pay_later
		FROM shops WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var m Modes
		if err := rows.Scan(&id, &m.CatalogModeEnabled, &m.OpenOrderMode, &m.AllowPayLater); err != nil {
			return nil, err
		}
		out[id] = m
	}
	return out, rows.Err()
}

// List returns shops in a city/state, optionally excluding one owner's shops.
// Empty city or state does not filter.
func List(ctx context.Context, q postgres.Querier, city, state, excludeOwnerID string) ([]Shop, error) {
	rows, err := q.Query(ctx, `
		SELECT `+shopColumns+` FROM shops
		WHERE ($1 = '' OR lower(city) = lower($1))
		  AND ($2 = '' OR lower(state) = lower($2))
		  AND ($3 = '' OR owner_id <> $3)
		ORDER BY name, id`, city, state, excludeOwnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Shop{}
	for rows.Next() {
		s, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
