// Package filter holds the typed listing filters, their boundary decoding and
// validation, the haversine SQL builder, and the canonical form used to derive
// cache keys.
package filter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/ariefcatur/marketplace-core/internal/apperr"
	"github.com/ariefcatur/marketplace-core/internal/redisx"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type ProductFilter struct {
	Pagination `mapstructure:"-"`

	Category   string         `json:"category" mapstructure:"category" validate:"max=100"`
	MinPrice   *float64       `json:"min_price,omitempty" mapstructure:"-" validate:"omitempty,gte=0"`
	MaxPrice   *float64       `json:"max_price,omitempty" mapstructure:"-" validate:"omitempty,gte=0"`
	Tags       []string       `json:"tags" mapstructure:"tags" validate:"max=20,dive,max=50"`
	Search     string         `json:"search" mapstructure:"search" validate:"max=200"`
	ShopID     string         `json:"shop_id" mapstructure:"shop_id" validate:"max=64"`
	Attributes map[string]any `json:"attributes" mapstructure:"attributes"`
	City       string         `json:"city" mapstructure:"city" validate:"max=100"`
	State      string         `json:"state" mapstructure:"state" validate:"max=100"`
	Geo        *Geo           `json:"geo,omitempty" mapstructure:"-"`
}

func (f ProductFilter) Validate() error {
	if err := validate.Struct(f); err != nil {
		return apperr.Validation("product filter: %v", err)
	}
	for name, v := range map[string]*float64{"min_price": f.MinPrice, "max_price": f.MaxPrice} {
		if v != nil && !finite(*v) {
			return apperr.Validation("product filter: %s must be a finite number", name)
		}
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return apperr.Validation("product filter: min_price exceeds max_price")
	}
	return nil
}

// Canonical returns the normalized form of f. Two filters that select the
// same rows produce equal canonical forms.
func (f ProductFilter) Canonical() map[string]any {
	m := map[string]any{}
	putLower(m, "category", f.Category)
	if f.MinPrice != nil {
		m["minPrice"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		m["maxPrice"] = *f.MaxPrice
	}
	if tags := NormalizeTags(f.Tags); len(tags) > 0 {
		m["tags"] = tags
	}
	putTrimmed(m, "search", f.Search)
	putTrimmed(m, "shopId", f.ShopID)
	if attrs := NormalizeAttributes(f.Attributes); len(attrs) > 0 {
		m["attributes"] = attrs
	}
	putLower(m, "city", f.City)
	putLower(m, "state", f.State)
	if f.Geo != nil {
		m["geo"] = map[string]any{"lat": f.Geo.Lat, "lng": f.Geo.Lng, "radiusKm": f.Geo.RadiusKm}
	}
	f.Pagination.canonical(m)
	return m
}

type ServiceFilter struct {
	Pagination `mapstructure:"-"`

	Category     string `json:"category" mapstructure:"category" validate:"max=100"`
	ProviderID   string `json:"provider_id" mapstructure:"provider_id" validate:"max=64"`
	Search       string `json:"search" mapstructure:"search" validate:"max=200"`
	AvailableNow bool   `json:"available_now" mapstructure:"available_now"`
	Geo          *Geo   `json:"geo,omitempty" mapstructure:"-"`
}

func (f ServiceFilter) Validate() error {
	if err := validate.Struct(f); err != nil {
		return apperr.Validation("service filter: %v", err)
	}
	return nil
}

func (f ServiceFilter) Canonical() map[string]any {
	m := map[string]any{}
	putLower(m, "category", f.Category)
	putTrimmed(m, "providerId", f.ProviderID)
	putTrimmed(m, "search", f.Search)
	if f.AvailableNow {
		m["availableNow"] = true
	}
	if f.Geo != nil {
		m["geo"] = map[string]any{"lat": f.Geo.Lat, "lng": f.Geo.Lng, "radiusKm": f.Geo.RadiusKm}
	}
	f.Pagination.canonical(m)
	return m
}

// Key hashes a canonical filter into prefix:<sha256>, or prefix:all for an
// empty filter. encoding/json writes map keys in sorted order at every
// nesting level, which makes the serialization deterministic.
func Key(p redisx.Prefix, canonical map[string]any) (string, error) {
	if len(canonical) == 0 {
		return p.Key("all"), nil
	}
	b, err := json.Marshal(canonical)
	if err != nil {
		return "", apperr.Validation("filter not encodable: %v", err)
	}
	sum := sha256.Sum256(b)
	return p.Key(hex.EncodeToString(sum[:])), nil
}

// NormalizeAttributes trims keys and string values at every level. Both the
// cache key and the containment query use its result, so filters that differ
// only in padding select the same rows.
func NormalizeAttributes(attrs map[string]any) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	return canonicalValue(attrs).(map[string]any)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// NormalizeTags trims, drops empties and duplicates, and sorts.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func canonicalValue(v any) any {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[strings.TrimSpace(k)] = canonicalValue(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = canonicalValue(val)
		}
		return out
	default:
		return x
	}
}

func putTrimmed(m map[string]any, k, v string) {
	if v = strings.TrimSpace(v); v != "" {
		m[k] = v
	}
}

func putLower(m map[string]any, k, v string) {
	putTrimmed(m, k, strings.ToLower(v))
}
